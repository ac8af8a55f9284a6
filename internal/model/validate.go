package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"slices"
	"strings"
)

// ErrValidation is wrapped by every validation failure. Validation errors are
// raised before any network call and are never retried.
var ErrValidation = errors.New("validation failed")

// ValidationError names the offending field. Message is user-facing.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// SkillCategories is the fixed set of skill categories.
var SkillCategories = []string{"编程开发", "内容创作", "数据分析", "效率工具", "学习教育", "设计创意"}

// SkillDifficulties is the fixed set of skill difficulty levels.
var SkillDifficulties = []string{"初级", "中级", "高级"}

// RequestStatuses lists every valid CustomRequest status.
var RequestStatuses = []RequestStatus{RequestPending, RequestInProgress, RequestCompleted, RequestRejected}

type tableRules struct {
	required []string
	checks   map[string]func(string) error
}

var rules = map[string]tableRules{
	TableAgents: {
		required: []string{"name", "description", "url"},
		checks:   map[string]func(string) error{"url": checkURL("url")},
	},
	TablePrompts: {
		required: []string{"title", "content"},
	},
	TableTeachingResources: {
		required: []string{"title", "description", "url"},
	},
	TableCustomRequests: {
		required: []string{"name", "email", "description"},
		checks: map[string]func(string) error{
			"email":  checkEmail,
			"status": checkStatus,
		},
	},
	TableSkills: {
		required: []string{"name", "description", "category", "difficulty"},
		checks: map[string]func(string) error{
			"category":   checkCategory,
			"difficulty": checkDifficulty,
		},
	},
	TableCarouselItems: {
		required: []string{"title", "image_url"},
	},
	TableDefaultContent: {
		required: []string{"section", "content_key"},
	},
}

// Validate checks a record about to be created: every required field must be
// non-blank and every constrained field must hold an allowed value.
func Validate(r Record) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("model: encode %s: %w", r.Table(), err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("model: decode %s: %w", r.Table(), err)
	}
	return validateFields(r.Table(), fields, true)
}

// ValidatePatch checks only the fields present in patch. A required field may
// be omitted but not blanked.
func ValidatePatch(table string, patch map[string]any) error {
	if len(patch) == 0 {
		return invalid("", "没有需要更新的字段")
	}
	return validateFields(table, patch, false)
}

func validateFields(table string, fields map[string]any, full bool) error {
	tr, ok := rules[table]
	if !ok {
		return nil
	}
	for _, name := range tr.required {
		v, present := fields[name]
		if !present && !full {
			continue
		}
		if isBlank(v) {
			return invalid(name, "缺少必填字段: %s", name)
		}
	}
	for _, name := range sortedKeys(tr.checks) {
		v, present := fields[name]
		if !present || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return invalid(name, "字段类型错误: %s", name)
		}
		if err := tr.checks[name](s); err != nil {
			return err
		}
	}
	return nil
}

func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	default:
		return false
	}
}

func sortedKeys(m map[string]func(string) error) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func checkURL(field string) func(string) error {
	return func(raw string) error {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return invalid(field, "无效的链接地址: %s", raw)
		}
		scheme := strings.ToLower(u.Scheme)
		if scheme != "http" && scheme != "https" {
			return invalid(field, "无效的链接地址: %s", raw)
		}
		return nil
	}
}

func checkEmail(raw string) error {
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != strings.TrimSpace(raw) {
		return invalid("email", "无效的邮箱地址: %s", raw)
	}
	return nil
}

func checkStatus(raw string) error {
	if !slices.Contains(RequestStatuses, RequestStatus(raw)) {
		return invalid("status", "无效的请求状态: %s", raw)
	}
	return nil
}

func checkCategory(raw string) error {
	if !slices.Contains(SkillCategories, raw) {
		return invalid("category", "无效的技能分类: %s", raw)
	}
	return nil
}

func checkDifficulty(raw string) error {
	if !slices.Contains(SkillDifficulties, raw) {
		return invalid("difficulty", "无效的难度等级: %s", raw)
	}
	return nil
}
