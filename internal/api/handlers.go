package api

import (
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vetref/electrolyte-cli/internal/compat"
	"github.com/vetref/electrolyte-cli/internal/consensus"
	"github.com/vetref/electrolyte-cli/internal/dosing"
	"github.com/vetref/electrolyte-cli/internal/input"
)

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"rules":  s.rules.State().String(),
	})
}

type rulesResponse struct {
	Version  string             `json:"version"`
	Checksum string             `json:"checksum"`
	LoadedAt *time.Time         `json:"loaded_at,omitempty"`
	Ruleset  *consensus.Ruleset `json:"ruleset"`
}

func (s *Server) getRules(w http.ResponseWriter, r *http.Request) {
	rs, err := s.rules.Load(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := rulesResponse{Version: rs.Version, Checksum: rs.Checksum(), Ruleset: rs}
	if l, ok := s.rules.(interface{ LoadedAt() time.Time }); ok {
		at := l.LoadedAt()
		resp.LoadedAt = &at
	}
	writeJSON(w, http.StatusOK, resp)
}

// getRefs formats the citations named by ?keys=a,b, or every citation when
// no keys are given.
func (s *Server) getRefs(w http.ResponseWriter, r *http.Request) {
	rs, err := s.rules.Load(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	var keys []string
	for _, k := range strings.Split(r.URL.Query().Get("keys"), ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		keys = slices.Sorted(maps.Keys(rs.Refs))
	}
	writeJSON(w, http.StatusOK, map[string][]string{"refs": rs.GetRefs(keys...)})
}

type modifiersResponse struct {
	Patient      any                    `json:"patient"`
	Modifiers    consensus.Adjustment   `json:"modifiers"`
	SodiumLimits consensus.SodiumLimits `json:"sodium_limits"`
}

func (s *Server) postModifiers(w http.ResponseWriter, r *http.Request) {
	var body dosing.PatientFields
	if !decode(w, r, &body) {
		return
	}
	v := input.New()
	pc := body.Context(v)
	if err := v.Err(); err != nil {
		writeError(w, r, err)
		return
	}

	rs, err := s.rules.Load(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	adj, err := rs.ApplyModifiers(pc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	lim, err := rs.SodiumLimits(pc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, modifiersResponse{Patient: pc, Modifiers: adj, SodiumLimits: lim})
}

type calculatorInfo struct {
	Electrolyte dosing.Electrolyte `json:"electrolyte"`
	NeedsRules  bool               `json:"needs_rules"`
	Fields      []dosing.Field     `json:"fields"`
}

func (s *Server) listCalculators(w http.ResponseWriter, _ *http.Request) {
	out := make([]calculatorInfo, 0, len(dosing.All))
	for _, e := range dosing.All {
		out = append(out, calculatorInfo{Electrolyte: e, NeedsRules: e.NeedsRules(), Fields: e.Fields()})
	}
	writeJSON(w, http.StatusOK, out)
}

type calcBody struct {
	Patient dosing.PatientFields `json:"patient"`
	Values  dosing.Values        `json:"values"`
}

func (s *Server) postCalc(w http.ResponseWriter, r *http.Request) {
	var body calcBody
	if !decode(w, r, &body) {
		return
	}
	res, err := s.engine.Evaluate(r.Context(), dosing.Request{
		Electrolyte: chi.URLParam(r, "electrolyte"),
		Patient:     body.Patient,
		Values:      body.Values,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) listFluids(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"fluids": s.fluids(r.Context()).Names()})
}

func (s *Server) getFluid(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	info, ok := s.fluids(r.Context()).Lookup(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown fluid " + name})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type compatResponse struct {
	Verdict compat.Verdict `json:"verdict"`
	Result  *compat.Result `json:"result"`
}

type additiveResponse struct {
	Additive   compat.Additive `json:"additive"`
	FluidsSafe []string        `json:"compatible_fluids"`
}

// getCompat checks ?additive= against ?fluid=. Without a fluid it lists the
// base fluids the additive may be mixed into.
func (s *Server) getCompat(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	additive, base := strings.TrimSpace(q.Get("additive")), strings.TrimSpace(q.Get("fluid"))
	if additive == "" {
		writeError(w, r, input.FieldErrors{{Field: "additive", Reason: "required"}})
		return
	}
	a, ok := s.catalog.Additive(additive)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown additive " + additive})
		return
	}
	if base == "" {
		writeJSON(w, http.StatusOK, additiveResponse{Additive: a, FluidsSafe: s.catalog.FluidsFor(additive)})
		return
	}
	res := s.catalog.Check(additive, base)
	if res == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown fluid " + base})
		return
	}
	writeJSON(w, http.StatusOK, compatResponse{Verdict: res.Verdict(), Result: res})
}

func (s *Server) listAdditives(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"additives": s.catalog.Additives(),
		"conflicts": s.catalog.Conflicts(),
	})
}
