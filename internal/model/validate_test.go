package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/vitrine/internal/model"
)

func requireValidation(t *testing.T, err error, field, contains string) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrValidation)
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, field, ve.Field)
	assert.Contains(t, ve.Message, contains)
}

func TestValidate_AgentRequiredFields(t *testing.T) {
	err := model.Validate(model.Agent{Name: "", Description: "x", URL: "x"})
	requireValidation(t, err, "name", "name")

	err = model.Validate(model.Agent{Name: "  ", Description: "x", URL: "https://example.com"})
	requireValidation(t, err, "name", "缺少必填字段")

	err = model.Validate(model.Agent{Name: "a", Description: "x"})
	requireValidation(t, err, "url", "url")
}

func TestValidate_AgentURL(t *testing.T) {
	assert.NoError(t, model.Validate(model.Agent{Name: "a", Description: "b", URL: "https://example.com/agent"}))

	for _, bad := range []string{"x", "/relative", "ftp://example.com", "javascript:alert(1)"} {
		err := model.Validate(model.Agent{Name: "a", Description: "b", URL: bad})
		requireValidation(t, err, "url", "无效的链接地址")
	}
}

func TestValidate_SkillCategory(t *testing.T) {
	err := model.Validate(model.Skill{Name: "n", Description: "d", Category: "不存在分类", Difficulty: "初级"})
	requireValidation(t, err, "category", "无效的技能分类: 不存在分类")
}

func TestValidate_SkillDifficulty(t *testing.T) {
	err := model.Validate(model.Skill{Name: "n", Description: "d", Category: "编程开发", Difficulty: "专家"})
	requireValidation(t, err, "difficulty", "无效的难度等级: 专家")
}

func TestValidate_SkillAllEnumerations(t *testing.T) {
	for _, c := range model.SkillCategories {
		for _, d := range model.SkillDifficulties {
			assert.NoError(t, model.Validate(model.Skill{Name: "n", Description: "d", Category: c, Difficulty: d}), c+"/"+d)
		}
	}
}

func TestValidate_CustomRequest(t *testing.T) {
	ok := model.CustomRequest{Name: "Li", Email: "li@example.com", Description: "site"}
	assert.NoError(t, model.Validate(ok))

	bad := ok
	bad.Email = "not-an-email"
	requireValidation(t, model.Validate(bad), "email", "无效的邮箱地址")

	bad = ok
	bad.Email = "Li <li@example.com>"
	requireValidation(t, model.Validate(bad), "email", "无效的邮箱地址")

	bad = ok
	bad.Status = "archived"
	requireValidation(t, model.Validate(bad), "status", "无效的请求状态")

	withStatus := ok
	withStatus.Status = model.RequestInProgress
	assert.NoError(t, model.Validate(withStatus))
}

func TestValidate_OtherTables(t *testing.T) {
	assert.NoError(t, model.Validate(model.Prompt{Title: "t", Content: "c"}))
	requireValidation(t, model.Validate(model.Prompt{Title: "t"}), "content", "content")

	assert.NoError(t, model.Validate(model.TeachingResource{Title: "t", Description: "d", URL: "https://go.dev"}))
	requireValidation(t, model.Validate(model.TeachingResource{Title: "t", Description: "d"}), "url", "url")

	assert.NoError(t, model.Validate(model.CarouselItem{Title: "t", ImageURL: "/img/1.png"}))
	requireValidation(t, model.Validate(model.CarouselItem{Title: "t"}), "image_url", "image_url")

	assert.NoError(t, model.Validate(model.DefaultContent{Section: "hero", ContentKey: "title"}))
	requireValidation(t, model.Validate(model.DefaultContent{Section: "hero"}), "content_key", "content_key")
}

func TestValidatePatch(t *testing.T) {
	assert.NoError(t, model.ValidatePatch(model.TableAgents, map[string]any{"description": "new"}))
	assert.NoError(t, model.ValidatePatch(model.TableSkills, map[string]any{"downloads": 3}))

	requireValidation(t, model.ValidatePatch(model.TableAgents, map[string]any{"name": ""}), "name", "缺少必填字段")
	requireValidation(t, model.ValidatePatch(model.TableAgents, map[string]any{"url": "x"}), "url", "无效的链接地址")
	requireValidation(t, model.ValidatePatch(model.TableSkills, map[string]any{"category": "x"}), "category", "无效的技能分类")
	requireValidation(t, model.ValidatePatch(model.TableSkills, map[string]any{"difficulty": 3}), "difficulty", "字段类型错误")
	requireValidation(t, model.ValidatePatch(model.TableCustomRequests, map[string]any{"status": "done"}), "status", "无效的请求状态")
	requireValidation(t, model.ValidatePatch(model.TablePrompts, map[string]any{}), "", "没有需要更新的字段")
}

func TestValidatePatch_UnknownTableAcceptsAnything(t *testing.T) {
	assert.NoError(t, model.ValidatePatch("other", map[string]any{"x": ""}))
}
