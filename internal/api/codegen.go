package api

import (
	"net/http"

	"github.com/AaronLay10/SentientStudio/internal/codegen"
)

// writeGenerated answers with the generation result. A failed generation is
// a 200 with success false, except for unknown sources.
func (s *Server) writeGenerated(w http.ResponseWriter, res codegen.Result, sourceErr error) {
	countCodegen(res.Success)
	if sourceErr != nil {
		s.writeFailure(w, sourceErr)
		return
	}
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, res)
}

func (s *Server) generateFromScenario(w http.ResponseWriter, r *http.Request) {
	lang := codegen.Language(r.URL.Query().Get("language"))
	res := s.codegen.GenerateFromScenario(r.Context(), r.PathValue("id"), lang)
	s.writeGenerated(w, res, s.sourceError(r, res, true))
}

func (s *Server) generateFromVisualScript(w http.ResponseWriter, r *http.Request) {
	lang := codegen.Language(r.URL.Query().Get("language"))
	res := s.codegen.GenerateFromVisualScript(r.Context(), r.PathValue("id"), lang)
	s.writeGenerated(w, res, s.sourceError(r, res, false))
}

// sourceError reports a missing scenario or script so it maps to 404
// rather than a generic generation failure.
func (s *Server) sourceError(r *http.Request, res codegen.Result, isScenario bool) error {
	if res.Success {
		return nil
	}
	var err error
	if isScenario {
		_, err = s.store.GetScenario(r.Context(), r.PathValue("id"))
	} else {
		_, err = s.store.GetVisualScript(r.Context(), r.PathValue("id"))
	}
	return err
}

type validateCodeRequest struct {
	Code     string `json:"code" validate:"required"`
	Language string `json:"language"`
}

func (s *Server) validateCode(w http.ResponseWriter, r *http.Request) {
	var req validateCodeRequest
	if err := s.decode(r, &req, false); err != nil {
		s.writeFailure(w, err)
		return
	}
	check := s.codegen.ValidateSyntax(req.Code, codegen.Language(req.Language))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": check.Valid,
		"valid":   check.Valid,
		"message": check.Message,
	})
}

type exportCodeRequest struct {
	Code     string `json:"code" validate:"required"`
	Filename string `json:"filename" validate:"required,max=200"`
	Language string `json:"language"`
}

func (s *Server) exportCode(w http.ResponseWriter, r *http.Request) {
	var req exportCodeRequest
	if err := s.decode(r, &req, false); err != nil {
		s.writeFailure(w, err)
		return
	}
	res, err := s.codegen.Export(req.Code, req.Filename, codegen.Language(req.Language))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeOK(w, http.StatusCreated, "code exported", map[string]interface{}{"export": res})
}

func (s *Server) languages(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, "", map[string]interface{}{"languages": s.codegen.SupportedLanguages()})
}
