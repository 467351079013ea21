package http

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"

	"github.com/kerinin/hmsearch/dberrors"
	"github.com/kerinin/hmsearch/factory"
	"github.com/kerinin/hmsearch/registry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Routes:
//
//	POST /add/{shape}/{bits}/{tolerance}/{namespace}
//	POST /add/{shape}/{bits}/{dimensions}/{tolerance}/{namespace}
//
// and the same families under /query and /delete. The body is a JSON
// array of base64-encoded fingerprints (standard alphabet, padded);
// responses map each input fingerprint to a bool (add/delete) or to an
// array of matching fingerprints (query). Fingerprint byte order inside
// the base64 is little-endian for integer shapes, element-wise in
// declared order for vector shapes.

type route struct {
	op  string
	key registry.Key
}

func parseRoute(path string, defaults Defaults) (route, bool) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 3 || len(segments) > 6 {
		return route{}, false
	}

	var r route
	r.op = segments[0]
	switch r.op {
	case "add", "query", "delete":
	default:
		return route{}, false
	}

	// The original route family: /op/b64/{tolerance}/{namespace} and
	// /op/b64/{namespace}, integer fingerprints at the server's default
	// width (and default tolerance for the short form).
	if segments[1] == "b64" {
		r.key.Kind = factory.KindUint
		r.key.Bits = defaults.Bits
		switch len(segments) {
		case 3:
			r.key.Tolerance = defaults.Tolerance
			r.key.Namespace = segments[2]
		case 4:
			tolerance, err := strconv.Atoi(segments[2])
			if err != nil {
				return route{}, false
			}
			r.key.Tolerance = tolerance
			r.key.Namespace = segments[3]
		default:
			return route{}, false
		}
		return r, r.key.Namespace != ""
	}

	if len(segments) != 5 && len(segments) != 6 {
		return route{}, false
	}

	kind := factory.Kind(segments[1])
	switch kind {
	case factory.KindUint, factory.KindVector:
	default:
		return route{}, false
	}
	r.key.Kind = kind

	bits, err := strconv.Atoi(segments[2])
	if err != nil {
		return route{}, false
	}
	r.key.Bits = bits

	rest := segments[3:]
	if len(rest) == 3 {
		dims, err := strconv.Atoi(rest[0])
		if err != nil {
			return route{}, false
		}
		r.key.Dimensions = dims
		rest = rest[1:]
	}

	tolerance, err := strconv.Atoi(rest[0])
	if err != nil {
		return route{}, false
	}
	r.key.Tolerance = tolerance
	r.key.Namespace = rest[1]
	if r.key.Namespace == "" {
		return route{}, false
	}
	return r, true
}

func (s *Server) handleOperation(ctx *fasthttp.RequestCtx) {
	r, ok := parseRoute(string(ctx.Path()), s.defaults)
	if !ok {
		replyStatus(ctx, fasthttp.StatusNotFound)
		return
	}

	var fingerprints []string
	if err := json.Unmarshal(ctx.PostBody(), &fingerprints); err != nil {
		replyError(ctx, fasthttp.StatusBadRequest, "unable to parse JSON")
		return
	}

	db, err := s.registry.GetOrCreate(r.key)
	if err != nil {
		replyDBError(ctx, err)
		return
	}

	switch r.op {
	case "add":
		s.handleAdd(ctx, db, fingerprints)
	case "query":
		s.handleQuery(ctx, db, fingerprints)
	case "delete":
		s.handleDelete(ctx, db, fingerprints)
	}
}

func (s *Server) handleAdd(ctx *fasthttp.RequestCtx, db factory.DB, fingerprints []string) {
	results := make(map[string]bool, len(fingerprints))
	for _, fpB64 := range fingerprints {
		fp, err := base64.StdEncoding.DecodeString(fpB64)
		if err != nil {
			replyError(ctx, fasthttp.StatusBadRequest, "unable to decode base-64: "+err.Error())
			return
		}
		added, err := db.Insert(fp)
		if err != nil {
			replyDBError(ctx, err)
			return
		}
		results[fpB64] = added
	}
	replyJSON(ctx, fasthttp.StatusOK, results)
}

func (s *Server) handleQuery(ctx *fasthttp.RequestCtx, db factory.DB, fingerprints []string) {
	results := make(map[string][]string, len(fingerprints))
	for _, fpB64 := range fingerprints {
		fp, err := base64.StdEncoding.DecodeString(fpB64)
		if err != nil {
			replyError(ctx, fasthttp.StatusBadRequest, "unable to decode base-64: "+err.Error())
			return
		}
		matches, found, err := db.Get(fp)
		if err != nil {
			replyDBError(ctx, err)
			return
		}
		encoded := []string{}
		if found {
			encoded = make([]string, len(matches))
			for i, m := range matches {
				encoded[i] = base64.StdEncoding.EncodeToString(m)
			}
		}
		results[fpB64] = encoded
	}
	replyJSON(ctx, fasthttp.StatusOK, results)
}

func (s *Server) handleDelete(ctx *fasthttp.RequestCtx, db factory.DB, fingerprints []string) {
	results := make(map[string]bool, len(fingerprints))
	for _, fpB64 := range fingerprints {
		fp, err := base64.StdEncoding.DecodeString(fpB64)
		if err != nil {
			replyError(ctx, fasthttp.StatusBadRequest, "unable to decode base-64: "+err.Error())
			return
		}
		removed, err := db.Remove(fp)
		if err != nil {
			replyDBError(ctx, err)
			return
		}
		results[fpB64] = removed
	}
	replyJSON(ctx, fasthttp.StatusOK, results)
}

// replyDBError maps the engine error taxonomy to status codes: caller
// mistakes (bad shape, bad payload length) are 400s, backend failures are
// 500s.
func replyDBError(ctx *fasthttp.RequestCtx, err error) {
	var dbErr *dberrors.Error
	if errors.As(err, &dbErr) {
		switch dbErr.Kind {
		case dberrors.KindConfiguration, dberrors.KindEncoding:
			replyError(ctx, fasthttp.StatusBadRequest, err.Error())
			return
		}
	}
	log.Errorw("operation failed", "err", err)
	replyError(ctx, fasthttp.StatusInternalServerError, err.Error())
}

func replyJSON(ctx *fasthttp.RequestCtx, code int, v interface{}) {
	ctx.SetContentType("application/json")
	incStatus(code)
	ctx.SetStatusCode(code)
	if err := json.NewEncoder(ctx).Encode(v); err != nil {
		log.Errorw("failed to marshal response", "err", err)
	}
}
