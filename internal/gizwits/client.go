package gizwits

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL       = "https://euapi.gizwits.com/app/"
	DefaultApplicationID = "c70a66ff039d41b4a220e198b0fcc8b3"
	DefaultLang          = "en"
	DefaultTimeout       = 10 * time.Second

	headerApplicationID = "X-Gizwits-Application-Id"
	headerUserToken     = "X-Gizwits-User-token"
)

type Config struct {
	BaseURL       string
	ApplicationID string
	Lang          string
	Timeout       time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.ApplicationID == "" {
		cfg.ApplicationID = DefaultApplicationID
	}
	if cfg.Lang == "" {
		cfg.Lang = DefaultLang
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// ---- wire DTOs ----

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Lang     string `json:"lang"`
}

type loginReply struct {
	Token    string `json:"token"`
	ExpireAt int64  `json:"expire_at"`
}

type latestReply struct {
	Attr struct {
		Mode any `json:"mode"`
	} `json:"attr"`
}

type controlReq struct {
	Attrs struct {
		Mode int `json:"mode"`
	} `json:"attrs"`
}

type errorReply struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_message"`
}

// ---- operations ----

// Login exchanges credentials for a session. expire_at is seconds since epoch.
func (c *Client) Login(ctx context.Context, username, password string) (Session, error) {
	body := loginReq{Username: username, Password: password, Lang: c.cfg.Lang}
	var reply loginReply
	if err := c.do(ctx, http.MethodPost, "login", "", body, &reply); err != nil {
		return Session{}, err
	}
	if reply.Token == "" {
		return Session{}, fmt.Errorf("gizwits: login reply without token")
	}
	return Session{
		Token:     reply.Token,
		ExpiresAt: time.Unix(reply.ExpireAt, 0),
	}, nil
}

// LatestMode returns the raw attr.mode value of the device's latest data.
// Non-string values come back as an empty string with an error.
func (c *Client) LatestMode(ctx context.Context, token, did string) (string, error) {
	var reply latestReply
	if err := c.do(ctx, http.MethodGet, "devdata/"+url.PathEscape(did)+"/latest", token, nil, &reply); err != nil {
		return "", err
	}
	mode, ok := reply.Attr.Mode.(string)
	if !ok {
		return "", fmt.Errorf("gizwits: attr.mode is %T, want string", reply.Attr.Mode)
	}
	return mode, nil
}

// SetMode writes the numeric wire mode to the device.
func (c *Client) SetMode(ctx context.Context, token, did string, wire int) error {
	var body controlReq
	body.Attrs.Mode = wire
	return c.do(ctx, http.MethodPost, "control/"+url.PathEscape(did), token, body, nil)
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var rdr io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(headerApplicationID, c.cfg.ApplicationID)
	if token != "" {
		req.Header.Set(headerUserToken, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gizwits: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		se := &StatusError{Status: resp.StatusCode}
		var er errorReply
		if b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); len(b) > 0 {
			if json.Unmarshal(b, &er) == nil {
				se.Code = er.Code
				se.Message = er.Message
			} else {
				se.Message = strings.TrimSpace(string(b))
			}
		}
		return se
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("gizwits: decode %s: %w", path, err)
	}
	return nil
}
