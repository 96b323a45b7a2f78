package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
)

// Commands issues outbound operations against the server. Every command is
// fire-and-forget: it may mutate the store optimistically and log intent,
// but the authoritative state change always arrives later through the event
// stream. HTTP responses are never interpreted.
type Commands struct {
	baseURL string
	client  *http.Client
	store   *Store
	log     *zerolog.Logger
}

// NewCommands builds the command layer. A nil httpClient defaults to
// http.DefaultClient.
func NewCommands(baseURL string, httpClient *http.Client, store *Store, logger *zerolog.Logger) *Commands {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Commands{
		baseURL: baseURL,
		client:  httpClient,
		store:   store,
		log:     logger,
	}
}

// UploadMedia registers a TempMedia placeholder under a fresh correlation
// token, then streams the file body to the server. The placeholder is
// resolved when MediaCreated carrying the token arrives; on a failed upload
// it stays forever.
func (c *Commands) UploadMedia(ctx context.Context, name string, body io.Reader) (uint64, error) {
	nonce := NewNonce()
	c.store.AddTempMedia(nonce, name)

	path := fmt.Sprintf("/api/media/upload/%d/%s", nonce, url.PathEscape(name))
	if err := c.request(ctx, http.MethodPost, path, body, ""); err != nil {
		return nonce, err
	}
	return nonce, nil
}

// DeleteMedia asks the server to remove a library entry.
func (c *Commands) DeleteMedia(ctx context.Context, id uint16) error {
	c.store.Log(fmt.Sprintf("Media %d has been set for deletion", id))
	return c.request(ctx, http.MethodDelete, fmt.Sprintf("/api/media/%d", id), nil, "")
}

// RequestDownload asks every client that does not yet hold the media to
// download it.
func (c *Commands) RequestDownload(ctx context.Context, id uint16) error {
	c.store.Log(fmt.Sprintf("Media %d has been requested for download", id))

	var downloaded []uint16
	for _, m := range c.store.Media() {
		if m.ID == id {
			downloaded = m.Downloaded
		}
	}

	targets := []uint16{}
	for _, client := range c.store.Clients() {
		if !containsID(downloaded, client.ID) {
			targets = append(targets, client.ID)
		}
	}

	return c.postJSON(ctx, fmt.Sprintf("/api/media/%d/request_download", id), targets)
}

// RequestDownloadFor asks an explicit set of clients to download the media.
func (c *Commands) RequestDownloadFor(ctx context.Context, id uint16, clients []uint16) error {
	c.store.Log(fmt.Sprintf("Media %d has been requested for download for clients %s", id, joinIDs(clients)))
	return c.postJSON(ctx, fmt.Sprintf("/api/media/%d/request_download", id), clients)
}

// StartMedia starts playback of the media on the given clients.
func (c *Commands) StartMedia(ctx context.Context, id uint16, clients []uint16) error {
	c.store.Log(fmt.Sprintf("Media %d has been requested to start for clients %s", id, joinIDs(clients)))
	return c.postJSON(ctx, fmt.Sprintf("/api/media/%d/play", id), clients)
}

// StopMedia stops playback on the given clients.
func (c *Commands) StopMedia(ctx context.Context, clients []uint16) error {
	c.store.Log(fmt.Sprintf("Media has been requested to stop for clients %s", joinIDs(clients)))
	return c.postJSON(ctx, "/api/media/stop", clients)
}

// DeleteClient asks the server to forget a client entirely.
func (c *Commands) DeleteClient(ctx context.Context, id uint16) error {
	c.store.Log(fmt.Sprintf("Client %d has been set for deletion", id))
	return c.request(ctx, http.MethodDelete, fmt.Sprintf("/api/client/%d", id), nil, "")
}

// ShutdownClient asks a client machine to power down.
func (c *Commands) ShutdownClient(ctx context.Context, id uint16) error {
	c.store.Log(fmt.Sprintf("Client %d has been requested to shutdown", id))
	return c.request(ctx, http.MethodPost, fmt.Sprintf("/api/client/%d/shutdown", id), nil, "")
}

// RenameClient sets a client's alias optimistically and sends the rename,
// carrying a correlation token so the echoed confirmation is not applied a
// second time.
func (c *Commands) RenameClient(ctx context.Context, id uint16, alias string) error {
	nonce := NewNonce()
	c.store.ApplyLocalRename(id, alias, nonce)

	body := struct {
		Alias string `json:"alias"`
		Nonce uint64 `json:"nonce"`
	}{Alias: alias, Nonce: nonce}

	return c.postJSON(ctx, fmt.Sprintf("/api/client/%d/rename", id), body)
}

// CreateGroup asks the server to create a new empty group.
func (c *Commands) CreateGroup(ctx context.Context) error {
	c.store.Log("Group has been set for creation")
	return c.request(ctx, http.MethodPost, "/api/group", nil, "")
}

func (c *Commands) postJSON(ctx context.Context, path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", path, err)
	}
	return c.request(ctx, http.MethodPost, path, bytes.NewReader(data), "application/json")
}

// request performs one outbound call. The response body is discarded:
// success is only ever confirmed via the event stream, and failures stay
// silent at this layer.
func (c *Commands) request(ctx context.Context, method, path string, body io.Reader, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("path", path).Msg("command request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
