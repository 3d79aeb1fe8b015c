package services

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/yungbote/draftline-backend/internal/pipeline"
	"github.com/yungbote/draftline-backend/internal/platform/apierr"
	"github.com/yungbote/draftline-backend/internal/platform/envutil"
	"github.com/yungbote/draftline-backend/internal/platform/logger"
)

// RulesService manages the per-stage prompt rule files under RULES_DIR.
// Only blog-<stage>.md names are addressable.
type RulesService struct {
	log *logger.Logger
	dir string
}

func NewRulesService(baseLog *logger.Logger) *RulesService {
	return &RulesService{
		log: baseLog.With("service", "RulesService"),
		dir: envutil.Str("RULES_DIR", "./rules"),
	}
}

type RuleInfo struct {
	Name     string `json:"name"`
	Filename string `json:"filename"`
	Exists   bool   `json:"exists"`
	Size     int64  `json:"size"`
}

func (s *RulesService) allowed(name string) bool {
	for _, stage := range pipeline.StageNames() {
		if name == "blog-"+stage {
			return true
		}
	}
	return false
}

func (s *RulesService) path(name string) (string, error) {
	if !s.allowed(name) {
		return "", apierr.New(http.StatusNotFound, "unknown_rule", fmt.Errorf("unknown rule %q", name))
	}
	return filepath.Join(s.dir, name+".md"), nil
}

func (s *RulesService) List() []RuleInfo {
	out := make([]RuleInfo, 0, len(pipeline.StageNames()))
	for _, stage := range pipeline.StageNames() {
		name := "blog-" + stage
		info := RuleInfo{Name: name, Filename: name + ".md"}
		if st, err := os.Stat(filepath.Join(s.dir, info.Filename)); err == nil {
			info.Exists = true
			info.Size = st.Size()
		}
		out = append(out, info)
	}
	return out
}

func (s *RulesService) Get(name string) (string, error) {
	path, err := s.path(name)
	if err != nil {
		return "", err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", apierr.New(http.StatusNotFound, "rule_not_found", fmt.Errorf("rule file %s not found", name))
		}
		return "", apierr.New(http.StatusInternalServerError, "rule_read_failed", err)
	}
	return string(raw), nil
}

func (s *RulesService) Put(name, content string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apierr.New(http.StatusInternalServerError, "rule_write_failed", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return apierr.New(http.StatusInternalServerError, "rule_write_failed", err)
	}
	s.log.Info("rule updated", "name", name, "bytes", len(content))
	return nil
}
