package codegen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/AaronLay10/SentientStudio/internal/events"
	"github.com/AaronLay10/SentientStudio/internal/scenario"
)

// ErrUnsupportedLanguage is returned for languages with no registered strategy.
var ErrUnsupportedLanguage = errors.New("language not supported")

// Source looks up the graphs the service generates from.
type Source interface {
	GetScenario(ctx context.Context, id string) (*scenario.Scenario, error)
	GetVisualScript(ctx context.Context, id string) (*scenario.VisualScript, error)
}

// Result is the outcome of one generation request. Failures are reported in
// Error with Success false; the service never panics on bad input.
type Result struct {
	Success         bool     `json:"success"`
	Code            string   `json:"code,omitempty"`
	Language        Language `json:"language"`
	SourceID        string   `json:"source_id"`
	SourceName      string   `json:"source_name,omitempty"`
	StateCount      int      `json:"states_count,omitempty"`
	TransitionCount int      `json:"transitions_count,omitempty"`
	NodeCount       int      `json:"nodes_count,omitempty"`
	ConnectionCount int      `json:"connections_count,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// SyntaxCheck is the verdict of the heuristic syntax check.
type SyntaxCheck struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// ExportResult describes a file written by Export.
type ExportResult struct {
	Success  bool   `json:"success"`
	FilePath string `json:"file_path"`
	FileSize int64  `json:"file_size"`
	Filename string `json:"filename"`
}

// ServiceConfig carries the service's tunables.
type ServiceConfig struct {
	DefaultLanguage Language
	ExportDir       string
	Clock           Clock
}

// Service dispatches generation requests to the registered strategies.
type Service struct {
	source      Source
	strategies  map[Language]Strategy
	defaultLang Language
	exportDir   string
	emit        func(level, name, msg string, fields map[string]interface{})
}

// NewService registers the Python, C# and C++ strategies.
func NewService(source Source, cfg ServiceConfig) *Service {
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = Python
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = "exports"
	}
	s := &Service{
		source:      source,
		strategies:  make(map[Language]Strategy),
		defaultLang: cfg.DefaultLanguage,
		exportDir:   cfg.ExportDir,
		emit: func(level, name, msg string, fields map[string]interface{}) {
			events.Emit(level, name, msg, fields)
		},
	}
	s.Register(NewPython(cfg.Clock))
	s.Register(NewCSharp(cfg.Clock))
	s.Register(NewCpp(cfg.Clock))
	return s
}

// Register adds or replaces the strategy for st.Language().
func (s *Service) Register(st Strategy) {
	s.strategies[st.Language()] = st
}

// SetEmitter replaces the event sink. nil silences the service.
func (s *Service) SetEmitter(fn func(level, name, msg string, fields map[string]interface{})) {
	if fn == nil {
		fn = func(string, string, string, map[string]interface{}) {}
	}
	s.emit = fn
}

func (s *Service) strategy(lang Language) (Language, Strategy, error) {
	if lang == "" {
		lang = s.defaultLang
	}
	st, ok := s.strategies[lang]
	if !ok {
		return lang, nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}
	return lang, st, nil
}

func (s *Service) fail(res Result, err error) Result {
	res.Success = false
	res.Error = err.Error()
	s.emit("warn", "codegen.failed", res.Error, map[string]interface{}{
		"source_id": res.SourceID,
		"language":  string(res.Language),
	})
	return res
}

// GenerateFromScenario renders the stored scenario id in lang.
func (s *Service) GenerateFromScenario(ctx context.Context, id string, lang Language) Result {
	lang, st, err := s.strategy(lang)
	res := Result{Language: lang, SourceID: id}
	if err != nil {
		return s.fail(res, err)
	}
	sc, err := s.source.GetScenario(ctx, id)
	if err != nil {
		return s.fail(res, fmt.Errorf("scenario %s: %w", id, err))
	}
	res.Code = st.GenerateFromScenario(sc)
	res.Success = true
	res.SourceName = sc.Name
	res.StateCount = len(sc.States)
	res.TransitionCount = len(sc.Transitions)
	s.emit("info", "codegen.generated", "scenario code generated", map[string]interface{}{
		"source_id": id,
		"language":  string(lang),
		"bytes":     len(res.Code),
	})
	return res
}

// GenerateFromVisualScript renders the stored visual script id in lang.
func (s *Service) GenerateFromVisualScript(ctx context.Context, id string, lang Language) Result {
	lang, st, err := s.strategy(lang)
	res := Result{Language: lang, SourceID: id}
	if err != nil {
		return s.fail(res, err)
	}
	v, err := s.source.GetVisualScript(ctx, id)
	if err != nil {
		return s.fail(res, fmt.Errorf("visual script %s: %w", id, err))
	}
	res.Code = st.GenerateFromVisualScript(v)
	res.Success = true
	res.SourceName = v.Name
	res.NodeCount = len(v.Nodes)
	res.ConnectionCount = len(v.Connections)
	s.emit("info", "codegen.generated", "visual script code generated", map[string]interface{}{
		"source_id": id,
		"language":  string(lang),
		"bytes":     len(res.Code),
	})
	return res
}

// SupportedLanguages lists registered languages sorted by value.
func (s *Service) SupportedLanguages() []LanguageInfo {
	out := make([]LanguageInfo, 0, len(s.strategies))
	for lang, st := range s.strategies {
		out = append(out, LanguageInfo{Value: lang, Name: displayName(lang), Extension: st.Extension()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

func displayName(lang Language) string {
	switch lang {
	case Python:
		return "Python"
	case CSharp:
		return "C#"
	case Cpp:
		return "C++"
	}
	return string(lang)
}

// ValidateSyntax runs a cheap structural check on generated or edited code.
// It catches obvious breakage only; a pass is not a compile.
func (s *Service) ValidateSyntax(code string, lang Language) SyntaxCheck {
	if lang == "" {
		lang = s.defaultLang
	}
	return ValidateSyntax(code, lang)
}

// ValidateSyntax is the service-free form of Service.ValidateSyntax.
func ValidateSyntax(code string, lang Language) SyntaxCheck {
	switch lang {
	case Python:
		return checkPython(code)
	case CSharp:
		return requireAll(code, "C#", "using ", "class ", "namespace ")
	case Cpp:
		return requireAll(code, "C++", "#include", "int main()")
	}
	return SyntaxCheck{Message: fmt.Sprintf("%v: %s", ErrUnsupportedLanguage, lang)}
}

func requireAll(code, name string, markers ...string) SyntaxCheck {
	var missing []string
	for _, m := range markers {
		if !strings.Contains(code, m) {
			missing = append(missing, strings.TrimSpace(m))
		}
	}
	if len(missing) > 0 {
		return SyntaxCheck{Message: fmt.Sprintf("%s code is missing: %s", name, strings.Join(missing, ", "))}
	}
	return SyntaxCheck{Valid: true, Message: "syntax looks valid"}
}

func checkPython(code string) SyntaxCheck {
	if msg := pythonBrackets(code); msg != "" {
		return SyntaxCheck{Message: msg}
	}
	var tabs, spaces bool
	for i, line := range strings.Split(code, "\n") {
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if strings.TrimSpace(line) == "" || indent == "" {
			continue
		}
		t, sp := strings.Contains(indent, "\t"), strings.Contains(indent, " ")
		if t && sp {
			return SyntaxCheck{Message: fmt.Sprintf("line %d: inconsistent use of tabs and spaces in indentation", i+1)}
		}
		tabs, spaces = tabs || t, spaces || sp
	}
	if tabs && spaces {
		return SyntaxCheck{Message: "inconsistent use of tabs and spaces in indentation"}
	}
	if !strings.Contains(code, "class ") && !strings.Contains(code, "def ") {
		return SyntaxCheck{Message: "Python code has no class or function definition"}
	}
	return SyntaxCheck{Valid: true, Message: "syntax looks valid"}
}

// pythonBrackets matches brackets outside string literals and comments.
func pythonBrackets(code string) string {
	pairs := map[rune]rune{')': '(', ']': '[', '}': '{'}
	var stack []rune
	var quote rune
	escaped, comment := false, false
	for _, r := range code {
		switch {
		case comment:
			if r == '\n' {
				comment = false
			}
		case quote != 0:
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == quote:
				quote = 0
			}
		case r == '#':
			comment = true
		case r == '"' || r == '\'':
			quote = r
		case r == '(' || r == '[' || r == '{':
			stack = append(stack, r)
		case r == ')' || r == ']' || r == '}':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[r] {
				return fmt.Sprintf("unexpected %q", r)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		return fmt.Sprintf("unclosed %q", stack[len(stack)-1])
	}
	return ""
}

var unsafeFileChars = regexp.MustCompile(`[^\p{L}\p{N}_.-]+`)

// Export writes code under the export directory. The filename is reduced to
// a safe base name and given the language's extension.
func (s *Service) Export(code, filename string, lang Language) (ExportResult, error) {
	if lang == "" {
		lang = s.defaultLang
	}
	ext := ".txt"
	if st, ok := s.strategies[lang]; ok {
		ext = st.Extension()
	}

	base := filepath.Base(filepath.Clean("/" + filename))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.Trim(unsafeFileChars.ReplaceAllString(base, "_"), "._")
	if base == "" {
		base = "generated"
	}
	name := base + ext

	if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
		return ExportResult{}, fmt.Errorf("export dir: %w", err)
	}
	path := filepath.Join(s.exportDir, name)
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return ExportResult{}, fmt.Errorf("export %s: %w", name, err)
	}
	s.emit("info", "codegen.exported", "code exported", map[string]interface{}{
		"file":     path,
		"language": string(lang),
		"bytes":    len(code),
	})
	return ExportResult{Success: true, FilePath: path, FileSize: int64(len(code)), Filename: name}, nil
}
