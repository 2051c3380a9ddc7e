package heatzy

import (
	"errors"

	"github.com/Agrid-Dev/heatzyswitch/internal/gizwits"
)

var (
	ErrLogin       = gizwits.ErrLogin
	ErrRead        = errors.New("unable to read device state")
	ErrWrite       = errors.New("unable to change device state")
	ErrUnknownMode = errors.New("unknown mode")
)
