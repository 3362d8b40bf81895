// ABOUTME: Remote procedure dispatch for /api/rpc/{procedure}.
// ABOUTME: Queries answer GET, mutations answer POST with a JSON body; results use the envelope.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/2389-research/chirp/internal/apierr"
	"github.com/2389-research/chirp/internal/auth"
	"github.com/2389-research/chirp/internal/models"
	"github.com/2389-research/chirp/internal/rpc"
)

const maxBodyBytes = 16 << 10

type procedure struct {
	method string
	call   func(r *http.Request) (any, error)
}

func (s *Server) procedures() map[string]procedure {
	return map[string]procedure{
		rpc.ProcGetAllPosts: {
			method: http.MethodGet,
			call: func(r *http.Request) (any, error) {
				return s.posts.GetAll(r.Context())
			},
		},
		rpc.ProcCreatePost: {
			method: http.MethodPost,
			call: func(r *http.Request) (any, error) {
				var in rpc.CreatePostInput
				if err := decodeInput(r, &in); err != nil {
					return nil, err
				}
				post, err := s.posts.Create(r.Context(), caller(r), in.Content)
				if err != nil {
					return nil, err
				}
				s.metrics.postsCreated.Inc()
				return post, nil
			},
		},
		rpc.ProcWhoAmI: {
			method: http.MethodGet,
			call: func(r *http.Request) (any, error) {
				return s.posts.WhoAmI(caller(r))
			},
		},
	}
}

// caller returns the signed-in author attached by the gate, or nil.
func caller(r *http.Request) *models.Author {
	session := auth.SessionFrom(r.Context())
	if session == nil {
		return nil
	}
	a := session.Author()
	return &a
}

func decodeInput(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return apierr.BadRequest("invalid request body")
	}
	return nil
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["procedure"]
	p, ok := s.procs[name]
	if !ok {
		s.metrics.observeCall("unknown", string(apierr.CodeNotFound))
		apierr.WriteError(w, apierr.NotFound("no such procedure: "+name))
		return
	}
	if r.Method != p.method {
		s.metrics.observeCall(name, string(apierr.CodeBadRequest))
		apierr.WriteError(w, apierr.BadRequest(name+" expects "+p.method))
		return
	}

	out, err := p.call(r)
	if err != nil {
		e := apierr.From(err)
		if e.Code == apierr.CodeInternal {
			zerolog.Ctx(r.Context()).Error().Err(err).Str("procedure", name).Msg("procedure failed")
		}
		s.metrics.observeCall(name, string(e.Code))
		apierr.WriteError(w, e)
		return
	}

	s.metrics.observeCall(name, "OK")
	if err := apierr.WriteData(w, http.StatusOK, out); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("procedure", name).Msg("failed to encode result")
	}
}
