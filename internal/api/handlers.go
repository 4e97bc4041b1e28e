package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strconv"

	"gennotes/internal/core"
	"gennotes/pkg/domain"

	"github.com/gin-gonic/gin"
)

const (
	fieldComment       = "commit-comment"
	fieldVariants      = "variants"
	fieldEditedVersion = "edited_version"
	queryVariantList   = "variant_list"
)

// payload is a request body split into its top-level fields, with the commit
// comment pulled out since it never counts as an edited field.
type payload struct {
	raw     map[string]json.RawMessage
	comment string
}

func (p payload) fields() []string {
	out := make([]string, 0, len(p.raw))
	for k := range p.raw {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// readPayload decodes a JSON object body. An empty body is an empty object.
func readPayload(c *gin.Context) (payload, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, "Could not read request body.")
		return payload{}, false
	}
	p := payload{raw: map[string]json.RawMessage{}}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &p.raw); err != nil || p.raw == nil {
			badRequest(c, "Request body must be a JSON object.")
			return payload{}, false
		}
	}
	if raw, ok := p.raw[fieldComment]; ok {
		if err := json.Unmarshal(raw, &p.comment); err != nil {
			badRequest(c, "The 'commit-comment' field must be a string.")
			return payload{}, false
		}
		delete(p.raw, fieldComment)
	}
	return p, true
}

// submittedData echoes the request body back in conflict responses.
func (p payload) submittedData() map[string]any {
	out := make(map[string]any, len(p.raw)+1)
	for k, raw := range p.raw {
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			out[k] = v
		}
	}
	if p.comment != "" {
		out[fieldComment] = p.comment
	}
	return out
}

// decodeEdit checks the update shape before looking at the tag values.
func decodeEdit(p payload) (core.Edit, error) {
	fields := p.fields()
	if err := domain.ValidateUpdateShape(fields); err != nil {
		return core.Edit{}, err
	}
	tags, err := domain.DecodeTags(p.raw[domain.FieldTags])
	if err != nil {
		return core.Edit{}, err
	}
	return core.Edit{Fields: fields, Tags: tags, Comment: p.comment}, nil
}

// editor authenticates the caller and checks the edit scope before the body is parsed.
func (s *Server) editor(c *gin.Context) (domain.Actor, bool) {
	actor, ok := requireActor(c)
	if !ok {
		return domain.Actor{}, false
	}
	if !actor.HasScope(domain.ScopeCommitEdit) {
		s.writeError(c, domain.Forbidden(domain.ScopeCommitEdit))
		return domain.Actor{}, false
	}
	return actor, true
}

func (s *Server) currentUser(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	author, err := s.svc.CurrentUser(actor)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, author)
}

func (s *Server) listVariants(c *gin.Context) {
	raw, filtered := c.GetQuery(queryVariantList)
	var tokens []string
	if filtered {
		var err error
		if tokens, err = parseVariantList(raw); err != nil {
			badRequest(c, "The 'variant_list' parameter must be a JSON list of variant ids.")
			return
		}
	}
	out, err := s.svc.ListVariants(c.Request.Context(), tokens, filtered)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// parseVariantList accepts a JSON array mixing numeric ids and string tokens.
// Elements of any other type are dropped.
func parseVariantList(raw string) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var items []any
	if err := dec.Decode(&items); err != nil {
		return nil, err
	}
	tokens := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			tokens = append(tokens, v)
		case json.Number:
			tokens = append(tokens, v.String())
		}
	}
	return tokens, nil
}

func (s *Server) getVariant(c *gin.Context) {
	view, err := s.svc.GetVariant(c.Request.Context(), c.Param("lookup"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) createVariant(c *gin.Context) {
	actor, ok := s.editor(c)
	if !ok {
		return
	}
	p, ok := readPayload(c)
	if !ok {
		return
	}
	tags, err := domain.DecodeTags(p.raw[domain.FieldTags])
	if err != nil {
		s.writeError(c, err)
		return
	}
	ctx := c.Request.Context()
	created, err := s.svc.CreateVariant(ctx, actor, tags, p.comment)
	if err != nil {
		s.writeError(c, err)
		return
	}
	view, err := s.svc.GetVariant(ctx, strconv.FormatInt(created.ID, 10))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (s *Server) updateVariant(partial bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := s.editor(c)
		if !ok {
			return
		}
		p, ok := readPayload(c)
		if !ok {
			return
		}
		edit, err := decodeEdit(p)
		if err != nil {
			s.writeError(c, err)
			return
		}
		ctx := c.Request.Context()
		updated, err := s.svc.UpdateVariant(ctx, actor, c.Param("lookup"), edit, partial)
		if err != nil {
			s.writeError(c, err)
			return
		}
		view, err := s.svc.GetVariant(ctx, strconv.FormatInt(updated.ID, 10))
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

func (s *Server) variantHistory(c *gin.Context) {
	ctx := c.Request.Context()
	view, err := s.svc.GetVariant(ctx, c.Param("lookup"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	history, err := s.svc.History(ctx, domain.EntityVariant, view.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (s *Server) listRelations(c *gin.Context) {
	out, err := s.svc.ListRelations(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	if out == nil {
		out = []domain.Relation{}
	}
	c.JSON(http.StatusOK, out)
}

// relationID parses the :id path parameter; anything but a positive integer is a miss.
func (s *Server) relationID(c *gin.Context) (int64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.writeError(c, domain.NotFound(domain.EntityRelation, raw))
		return 0, false
	}
	return id, true
}

func (s *Server) getRelation(c *gin.Context) {
	id, ok := s.relationID(c)
	if !ok {
		return
	}
	rel, err := s.svc.GetRelation(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rel)
}

func (s *Server) createRelation(c *gin.Context) {
	actor, ok := s.editor(c)
	if !ok {
		return
	}
	p, ok := readPayload(c)
	if !ok {
		return
	}
	tags, err := domain.DecodeTags(p.raw[domain.FieldTags])
	if err != nil {
		s.writeError(c, err)
		return
	}
	var variantIDs []int64
	if raw, present := p.raw[fieldVariants]; present {
		if err := json.Unmarshal(raw, &variantIDs); err != nil {
			badRequest(c, "The 'variants' field must be a list of variant ids.")
			return
		}
	}
	created, err := s.svc.CreateRelation(c.Request.Context(), actor, tags, variantIDs, p.comment)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) updateRelation(partial bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := s.editor(c)
		if !ok {
			return
		}
		id, ok := s.relationID(c)
		if !ok {
			return
		}
		p, ok := readPayload(c)
		if !ok {
			return
		}
		edit, err := decodeEdit(p)
		if err != nil {
			s.writeError(c, err)
			return
		}
		updated, err := s.svc.UpdateRelation(c.Request.Context(), actor, id, edit, partial)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func (s *Server) deleteRelation(c *gin.Context) {
	actor, ok := s.editor(c)
	if !ok {
		return
	}
	id, ok := s.relationID(c)
	if !ok {
		return
	}
	p, ok := readPayload(c)
	if !ok {
		return
	}
	edited := editedVersion(p.raw[fieldEditedVersion], c.Query(fieldEditedVersion))
	err := s.svc.DeleteRelation(c.Request.Context(), actor, id, edited, p.comment)
	if err != nil {
		if de, isDomain := domain.AsError(err); isDomain && de.Code == domain.CodeEditConflict {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"detail":          de.Detail,
				"current_version": de.CurrentVersion,
				"submitted_data":  p.submittedData(),
			})
			return
		}
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// editedVersion reads the client's claimed version from the body, falling
// back to the query string. Values that are not integers count as missing.
func editedVersion(raw json.RawMessage, query string) *int64 {
	if len(raw) > 0 {
		var n int64
		if err := json.Unmarshal(raw, &n); err == nil {
			return &n
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return &n
			}
		}
		return nil
	}
	if query != "" {
		if n, err := strconv.ParseInt(query, 10, 64); err == nil {
			return &n
		}
	}
	return nil
}

func (s *Server) relationHistory(c *gin.Context) {
	id, ok := s.relationID(c)
	if !ok {
		return
	}
	history, err := s.svc.History(c.Request.Context(), domain.EntityRelation, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}
