// Package rest talks to bookmarkd over HTTP.
package rest

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/bookmarker/internal/backend"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/config"
	"github.com/Rogue-Bear-Innovations/bookmarker/internal/models"
)

const (
	TokenHeader  = "X-Token"
	PreferHeader = "Prefer"
)

var ErrUnauthorized = errors.New("unauthorized")

var _ backend.Backend = (*Client)(nil)

type Client struct {
	http      *resty.Client
	tokens    *TokenFile
	returnRow bool
	logger    *zap.SugaredLogger
}

func NewClient(cfg *config.ClientConfig, l *zap.SugaredLogger) *Client {
	return &Client{
		http: resty.New().
			SetHostURL(cfg.ServerURL).
			SetHeader("Content-Type", "application/json"),
		tokens:    NewTokenFile(cfg.TokenFile),
		returnRow: cfg.ReturnRow,
		logger:    l,
	}
}

func (c *Client) Register(ctx context.Context, email, password string) error {
	return c.authenticate(ctx, "/auth/register", email, password)
}

func (c *Client) Login(ctx context.Context, email, password string) error {
	return c.authenticate(ctx, "/auth/login", email, password)
}

// CurrentUser returns nil when there is no stored token or the server rejects it.
func (c *Client) CurrentUser(ctx context.Context) (*models.Identity, error) {
	req, err := c.request(ctx)
	if errors.Is(err, ErrUnauthorized) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	resp, err := req.SetResult(&models.Identity{}).Get("/auth/user")
	if err != nil {
		return nil, errors.Wrap(err, "get current user")
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return nil, nil
	}
	if err := checkResponse(resp); err != nil {
		return nil, errors.Wrap(err, "get current user")
	}
	return resp.Result().(*models.Identity), nil
}

// SignOut invalidates the token on the server and always forgets it locally.
func (c *Client) SignOut(ctx context.Context) error {
	req, err := c.request(ctx)
	if errors.Is(err, ErrUnauthorized) {
		return nil
	}
	if err != nil {
		return err
	}

	resp, err := req.Post("/auth/logout")
	if cerr := c.tokens.Clear(); cerr != nil {
		c.logger.Warnw("forget token", "error", cerr)
	}
	if err != nil {
		return errors.Wrap(err, "sign out")
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return nil
	}
	return errors.Wrap(checkResponse(resp), "sign out")
}

// List returns the bookmarks of the token's user. The server scopes rows by token,
// rows of any other owner are dropped.
func (c *Client) List(ctx context.Context, owner uint64) ([]models.Bookmark, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := req.SetResult(&[]models.Bookmark{}).Get("/bookmarks")
	if err != nil {
		return nil, errors.Wrap(err, "list bookmarks")
	}
	if err := checkResponse(resp); err != nil {
		return nil, errors.Wrap(err, "list bookmarks")
	}

	rows := *resp.Result().(*[]models.Bookmark)
	out := make([]models.Bookmark, 0, len(rows))
	for _, row := range rows {
		if row.UserID == owner {
			out = append(out, row)
		}
	}
	return out, nil
}

// Insert returns a nil row when the server answers without one, as it does when the
// client is configured not to ask for it.
func (c *Client) Insert(ctx context.Context, bookmark models.NewBookmark) (*models.Bookmark, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	prefer := "return=representation"
	if !c.returnRow {
		prefer = "return=minimal"
	}

	resp, err := req.
		SetHeader(PreferHeader, prefer).
		SetBody(models.BookmarkReq{Title: bookmark.Title, URL: bookmark.URL}).
		Post("/bookmarks")
	if err != nil {
		return nil, errors.Wrap(err, "insert bookmark")
	}
	if err := checkResponse(resp); err != nil {
		return nil, errors.Wrap(err, "insert bookmark")
	}

	// any accepted insert without a row in the body is an insert without a returned row
	row, ok := decodeBookmark(resp.Body())
	if !ok {
		c.logger.Debugw("insert returned no row", "status", resp.StatusCode())
		return nil, nil
	}
	return row, nil
}

// Delete treats a row that is already gone as deleted.
func (c *Client) Delete(ctx context.Context, id uint64) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}

	resp, err := req.Delete("/bookmarks/" + strconv.FormatUint(id, 10))
	if err != nil {
		return errors.Wrap(err, "delete bookmark")
	}
	if resp.StatusCode() == http.StatusNotFound {
		c.logger.Debugw("bookmark already gone", "id", id)
		return nil
	}
	return errors.Wrap(checkResponse(resp), "delete bookmark")
}

func (c *Client) authenticate(ctx context.Context, path, email, password string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(models.CredentialsReq{Email: email, Password: password}).
		SetResult(&models.TokenResp{}).
		Post(path)
	if err != nil {
		return errors.Wrap(err, "authenticate")
	}
	if err := checkResponse(resp); err != nil {
		return err
	}

	token := resp.Result().(*models.TokenResp).Token
	if token == "" {
		return errors.New("server returned an empty token")
	}
	return c.tokens.Save(token)
}

// request returns a request carrying the stored token, or ErrUnauthorized if there is none.
func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	token, err := c.tokens.Load()
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrUnauthorized
	}
	return c.http.R().SetContext(ctx).SetHeader(TokenHeader, token), nil
}

func checkResponse(resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return errors.Errorf("%s: %s", resp.Status(), errorMessage(resp.Body()))
}
