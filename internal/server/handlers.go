package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/roach88/chainledger/internal/acl"
	"github.com/roach88/chainledger/internal/core"
	"github.com/roach88/chainledger/internal/engine"
)

type batchRequest struct {
	Records []core.Record `json:"records"`
}

// appendRecord handles POST /v1/records.
func (s *Server) appendRecord(c *gin.Context) {
	var rec core.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		badRequest(c, "invalid record: "+err.Error())
		return
	}
	s.fill(&rec)

	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.engine.AppendRecord(c.Request.Context(), rec, s.requestContext(c))
	if err != nil && h.IsZero() {
		s.fail(c, err)
		return
	}
	if err != nil {
		// Durable, but an after-append hook failed.
		c.JSON(http.StatusCreated, gin.H{"hash": h, "id": rec.ID, "warning": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"hash": h, "id": rec.ID})
}

// appendBatch handles POST /v1/records/batch.
func (s *Server) appendBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid batch: "+err.Error())
		return
	}
	for i := range req.Records {
		s.fill(&req.Records[i])
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	hashes, err := s.engine.AppendBatch(c.Request.Context(), req.Records, s.requestContext(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"hashes": hashes})
}

// getByHash handles GET /v1/records/:hash.
func (s *Server) getByHash(c *gin.Context) {
	h, err := core.ParseHash(c.Param("hash"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	s.mu.Lock()
	entry, ok := s.engine.GetEntry(h)
	s.mu.Unlock()

	if !ok {
		notFound(c, "no entry with hash "+h.String())
		return
	}
	c.JSON(http.StatusOK, entry)
}

// getByID handles GET /v1/records/by-id/:id.
func (s *Server) getByID(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.engine.GetRecordByID(id)
	if !ok {
		notFound(c, "no record with id "+id)
		return
	}
	h, err := core.ComputeHash(rec)
	if err != nil {
		s.fail(c, err)
		return
	}
	entry, _ := s.engine.GetEntry(h)
	c.JSON(http.StatusOK, entry)
}

// query handles GET /v1/records.
func (s *Server) query(c *gin.Context) {
	f, err := parseFilters(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	s.mu.Lock()
	res := s.engine.Query(f)
	s.mu.Unlock()

	c.JSON(http.StatusOK, res)
}

func parseFilters(c *gin.Context) (engine.QueryFilters, error) {
	f := engine.QueryFilters{
		Stream: c.Query("stream"),
		ID:     c.Query("id"),
	}

	var err error
	if f.TimestampFrom, err = optUint(c, "from"); err != nil {
		return f, err
	}
	if f.TimestampTo, err = optUint(c, "to"); err != nil {
		return f, err
	}
	if f.Offset, err = optInt(c, "offset"); err != nil {
		return f, err
	}
	if f.Limit, err = optInt(c, "limit"); err != nil {
		return f, err
	}

	for key, values := range c.Request.URL.Query() {
		name, ok := strings.CutPrefix(key, "filter.")
		if !ok || name == "" || len(values) == 0 {
			continue
		}
		if f.ModuleFilters == nil {
			f.ModuleFilters = make(map[string]any)
		}
		f.ModuleFilters[name] = values[0]
	}
	return f, nil
}

func optUint(c *gin.Context, key string) (*uint64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, &paramError{key: key, err: err}
	}
	return &v, nil
}

func optInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, &paramError{key: key, err: err}
	}
	return v, nil
}

type paramError struct {
	key string
	err error
}

func (e *paramError) Error() string {
	return e.key + " must be a non-negative integer"
}

func (e *paramError) Unwrap() error { return e.err }

// verify handles GET /v1/verify.
func (s *Server) verify(c *gin.Context) {
	s.mu.Lock()
	err := s.engine.Verify()
	n := s.engine.Len()
	s.mu.Unlock()

	if err != nil {
		body := gin.H{"valid": false, "entries": n, "error": err.Error()}
		var ee *engine.Error
		if errors.As(err, &ee) && ee.Verification != nil {
			body["verification"] = ee.Verification
		}
		c.JSON(http.StatusOK, body)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "entries": n})
}

// verifyStorage handles GET /v1/storage/verify.
func (s *Server) verifyStorage(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.engine.HasStorage() {
		c.JSON(http.StatusOK, gin.H{"valid": false, "storage": false})
		return
	}
	ok, err := s.engine.VerifyStorage(c.Request.Context())
	if err != nil && !engine.IsKind(err, engine.KindChainIntegrity) {
		s.fail(c, err)
		return
	}
	body := gin.H{"valid": ok, "storage": true}
	if err != nil {
		body["error"] = err.Error()
	}
	c.JSON(http.StatusOK, body)
}

// grant handles POST /v1/grants. GrantedBy defaults to the requester.
func (s *Server) grant(c *gin.Context) {
	var g acl.Grant
	if err := c.ShouldBindJSON(&g); err != nil {
		badRequest(c, "invalid grant: "+err.Error())
		return
	}
	if g.GrantedBy == "" {
		g.GrantedBy = c.GetHeader(RequesterHeader)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.Grant(c.Request.Context(), g); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// revoke handles DELETE /v1/grants?subject=&resource=&action=.
func (s *Server) revoke(c *gin.Context) {
	subject, resource, action := c.Query("subject"), c.Query("resource"), c.Query("action")
	if subject == "" || resource == "" || action == "" {
		badRequest(c, "subject, resource and action are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.Revoke(c.Request.Context(), subject, resource, action); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// listGrants handles GET /v1/grants/:subject.
func (s *Server) listGrants(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	grants, err := s.engine.ListGrants(c.Request.Context(), c.Param("subject"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if grants == nil {
		grants = []acl.Grant{}
	}
	c.JSON(http.StatusOK, gin.H{"grants": grants})
}

// checkAccess handles GET /v1/access?subject=&resource=&action=.
func (s *Server) checkAccess(c *gin.Context) {
	subject, resource, action := c.Query("subject"), c.Query("resource"), c.Query("action")
	if subject == "" || resource == "" || action == "" {
		badRequest(c, "subject, resource and action are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.engine.CheckAccess(c.Request.Context(), subject, resource, action)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"allowed": ok})
}

// modules handles GET /v1/modules.
func (s *Server) modules(c *gin.Context) {
	s.mu.Lock()
	meta := s.engine.ModuleMetadata()
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"modules": meta})
}
