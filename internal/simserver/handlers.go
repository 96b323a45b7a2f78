package simserver

import (
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/0x7030676e31/mediaplayer/internal/proto"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RenameRequest is the rename command body; Nonce is echoed back on the
// confirming event so the issuing dashboard can recognize it.
type RenameRequest struct {
	Alias string `json:"alias"`
	Nonce uint64 `json:"nonce"`
}

// SimClientRequest creates a scripted playback client.
type SimClientRequest struct {
	Hostname string `json:"hostname" binding:"required"`
	Username string `json:"username"`
	IP       string `json:"ip"`
}

func (s *Server) handleStream(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	id, ch := s.state.subscribe()
	defer s.state.unsubscribe(id)

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			if _, err := c.Writer.Write(frame); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}

// POST /api/media/upload/:nonce/:name
func (s *Server) handleUpload(c *gin.Context) {
	nonce, err := strconv.ParseUint(c.Param("nonce"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid nonce"})
		return
	}
	name, err := url.PathUnescape(c.Param("name"))
	if err != nil || name == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid name"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "read body"})
		return
	}

	s.state.mu.Lock()
	id := s.state.newID()
	s.state.library = append(s.state.library, proto.Media{
		ID:         id,
		Name:       name,
		Downloaded: []uint16{},
		// The real server probes the audio file; the simulator fakes a
		// duration from the byte count.
		Length: uint64(len(body)),
	})
	s.state.broadcast(proto.EventMediaCreated, proto.MediaCreatedData{
		ID:     id,
		Name:   name,
		Length: uint64(len(body)),
	}, &nonce)
	s.state.mu.Unlock()

	s.log.Info().Uint16("id", id).Str("name", name).Int("bytes", len(body)).Msg("media uploaded")
	c.String(http.StatusOK, strconv.Itoa(int(id)))
}

// DELETE /api/media/:id
func (s *Server) handleDeleteMedia(c *gin.Context) {
	id, ok := s.mediaParam(c)
	if !ok {
		return
	}

	s.state.mu.Lock()
	kept := s.state.library[:0]
	for _, m := range s.state.library {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	s.state.library = kept
	s.state.broadcast(proto.EventMediaDeleted, id, nil)
	s.state.mu.Unlock()

	c.Status(http.StatusOK)
}

// POST /api/media/:id/request_download
func (s *Server) handleRequestDownload(c *gin.Context) {
	id, ok := s.mediaParam(c)
	if !ok {
		return
	}
	var targets []uint16
	if err := c.ShouldBindJSON(&targets); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid client list"})
		return
	}

	s.state.mu.Lock()
	media := s.state.findMedia(id)
	if media == nil {
		s.state.mu.Unlock()
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "media not found"})
		return
	}
	for _, target := range targets {
		if hasID(media.Downloaded, target) {
			continue
		}
		media.Downloaded = append(media.Downloaded, target)
		s.state.broadcast(proto.EventMediaDownloaded, proto.MediaClientData{Media: id, Client: target}, nil)
	}
	s.state.mu.Unlock()

	c.Status(http.StatusOK)
}

// POST /api/media/:id/play
func (s *Server) handlePlay(c *gin.Context) {
	id, ok := s.mediaParam(c)
	if !ok {
		return
	}
	var targets []uint16
	if err := c.ShouldBindJSON(&targets); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid client list"})
		return
	}

	s.state.mu.Lock()
	if s.state.findMedia(id) == nil {
		s.state.mu.Unlock()
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "media not found"})
		return
	}
	for _, target := range targets {
		s.state.playing[target] = struct{}{}
		s.state.broadcast(proto.EventMediaStarted, proto.MediaClientData{Media: id, Client: target}, nil)
	}
	s.state.mu.Unlock()

	c.Status(http.StatusOK)
}

// POST /api/media/stop
func (s *Server) handleStop(c *gin.Context) {
	var targets []uint16
	if err := c.ShouldBindJSON(&targets); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid client list"})
		return
	}

	s.state.mu.Lock()
	for _, target := range targets {
		if _, ok := s.state.playing[target]; !ok {
			continue
		}
		delete(s.state.playing, target)
		s.state.broadcast(proto.EventMediaStopped, target, nil)
	}
	s.state.mu.Unlock()

	c.Status(http.StatusOK)
}

// DELETE /api/client/:id
func (s *Server) handleDeleteClient(c *gin.Context) {
	id, ok := s.clientParam(c)
	if !ok {
		return
	}

	s.state.mu.Lock()
	kept := s.state.clients[:0]
	for _, cl := range s.state.clients {
		if cl.ID != id {
			kept = append(kept, cl)
		}
	}
	s.state.clients = kept
	delete(s.state.playing, id)
	for i := range s.state.library {
		s.state.library[i].Downloaded = withoutID(s.state.library[i].Downloaded, id)
	}
	s.state.broadcast(proto.EventClientDeleted, id, nil)
	s.state.mu.Unlock()

	c.Status(http.StatusOK)
}

// POST /api/client/:id/shutdown
func (s *Server) handleShutdown(c *gin.Context) {
	id, ok := s.clientParam(c)
	if !ok {
		return
	}

	s.state.mu.Lock()
	client := s.state.findClient(id)
	if client == nil {
		s.state.mu.Unlock()
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "client not found"})
		return
	}
	client.Activity = proto.Offline(unixNow())
	delete(s.state.playing, id)
	s.state.broadcast(proto.EventClientDisconnected, []uint16{id}, nil)
	s.state.mu.Unlock()

	c.Status(http.StatusOK)
}

// POST /api/client/:id/rename
func (s *Server) handleRename(c *gin.Context) {
	id, ok := s.clientParam(c)
	if !ok {
		return
	}
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	s.state.mu.Lock()
	client := s.state.findClient(id)
	if client == nil {
		s.state.mu.Unlock()
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "client not found"})
		return
	}
	var alias *string
	if req.Alias != "" {
		alias = &req.Alias
	}
	client.Alias = alias
	s.state.broadcast(proto.EventClientRenamed, proto.RenameData{ID: id, Alias: alias}, &req.Nonce)
	s.state.mu.Unlock()

	c.Status(http.StatusOK)
}

// POST /api/group
func (s *Server) handleCreateGroup(c *gin.Context) {
	s.state.mu.Lock()
	id := s.state.newID()
	s.state.groups = append(s.state.groups, proto.Group{
		ID:      id,
		Name:    "Group #" + strconv.Itoa(int(id)),
		Members: []uint16{},
		Color:   defaultGroupColor,
	})
	s.state.broadcast(proto.EventGroupCreated, id, nil)
	s.state.mu.Unlock()

	c.String(http.StatusOK, strconv.Itoa(int(id)))
}

// --- scripted hooks: stand-ins for real playback clients ---

// POST /api/sim/client
func (s *Server) handleSimCreateClient(c *gin.Context) {
	var req SimClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.IP == "" {
		req.IP = c.ClientIP()
	}

	s.state.mu.Lock()
	id := s.state.newID()
	client := proto.Client{
		ID:       id,
		IP:       req.IP,
		Hostname: req.Hostname,
		Username: req.Username,
		Activity: proto.Online(),
	}
	s.state.clients = append(s.state.clients, client)
	s.state.broadcast(proto.EventClientCreated, client, nil)
	s.state.mu.Unlock()

	s.log.Info().Uint16("id", id).Str("hostname", req.Hostname).Msg("sim client created")
	c.String(http.StatusOK, strconv.Itoa(int(id)))
}

// POST /api/sim/client/:id/connect
func (s *Server) handleSimConnect(c *gin.Context) {
	id, ok := s.clientParam(c)
	if !ok {
		return
	}

	s.state.mu.Lock()
	client := s.state.findClient(id)
	if client == nil {
		s.state.mu.Unlock()
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "client not found"})
		return
	}
	client.Activity = proto.Online()
	s.state.broadcast(proto.EventClientConnected, id, nil)
	s.state.mu.Unlock()

	c.Status(http.StatusOK)
}

// POST /api/sim/client/:id/disconnect
func (s *Server) handleSimDisconnect(c *gin.Context) {
	id, ok := s.clientParam(c)
	if !ok {
		return
	}

	s.state.mu.Lock()
	client := s.state.findClient(id)
	if client == nil {
		s.state.mu.Unlock()
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "client not found"})
		return
	}
	client.Activity = proto.Offline(unixNow())
	delete(s.state.playing, id)
	s.state.broadcast(proto.EventClientDisconnected, []uint16{id}, nil)
	s.state.mu.Unlock()

	c.Status(http.StatusOK)
}

// PUT /api/sim/group/:id
func (s *Server) handleSimEditGroup(c *gin.Context) {
	id, ok := s.groupParam(c)
	if !ok {
		return
	}
	var req struct {
		Name  string `json:"name"`
		Color uint32 `json:"color"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	s.state.mu.Lock()
	group := s.state.findGroup(id)
	if group == nil {
		s.state.mu.Unlock()
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "group not found"})
		return
	}
	if req.Name != "" {
		group.Name = req.Name
	}
	if req.Color != 0 {
		group.Color = req.Color
	}
	s.state.broadcast(proto.EventGroupEdited, *group, nil)
	s.state.mu.Unlock()

	c.Status(http.StatusOK)
}

// POST /api/sim/group/:id/member/:client adds, DELETE removes.
func (s *Server) handleSimGroupMember(add bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.groupParam(c)
		if !ok {
			return
		}
		clientID, err := strconv.ParseUint(c.Param("client"), 10, 16)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid client id"})
			return
		}
		member := uint16(clientID)

		s.state.mu.Lock()
		group := s.state.findGroup(id)
		if group == nil {
			s.state.mu.Unlock()
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "group not found"})
			return
		}
		if add {
			if !hasID(group.Members, member) {
				group.Members = append(group.Members, member)
				s.state.broadcast(proto.EventGroupMemberAdded, proto.MemberData{Group: id, Client: member}, nil)
			}
		} else {
			if hasID(group.Members, member) {
				group.Members = withoutID(group.Members, member)
				s.state.broadcast(proto.EventGroupMemberDeleted, proto.MemberData{Group: id, Client: member}, nil)
			}
		}
		s.state.mu.Unlock()

		c.Status(http.StatusOK)
	}
}

// DELETE /api/sim/group/:id
func (s *Server) handleSimDeleteGroup(c *gin.Context) {
	id, ok := s.groupParam(c)
	if !ok {
		return
	}

	s.state.mu.Lock()
	kept := s.state.groups[:0]
	for _, g := range s.state.groups {
		if g.ID != id {
			kept = append(kept, g)
		}
	}
	s.state.groups = kept
	s.state.broadcast(proto.EventGroupDeleted, id, nil)
	s.state.mu.Unlock()

	c.Status(http.StatusOK)
}

func (s *Server) mediaParam(c *gin.Context) (uint16, bool) {
	return s.idParam(c, "id", "invalid media id")
}

func (s *Server) clientParam(c *gin.Context) (uint16, bool) {
	return s.idParam(c, "id", "invalid client id")
}

func (s *Server) groupParam(c *gin.Context) (uint16, bool) {
	return s.idParam(c, "id", "invalid group id")
}

func (s *Server) idParam(c *gin.Context, name, msg string) (uint16, bool) {
	raw, err := strconv.ParseUint(c.Param(name), 10, 16)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
		return 0, false
	}
	return uint16(raw), true
}

func hasID(ids []uint16, id uint16) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func withoutID(ids []uint16, id uint16) []uint16 {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
