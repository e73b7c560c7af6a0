// internal/models/textfield_test.go
package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexTextUnmarshal(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"普通字符串", `"白日依山尽"`, "白日依山尽"},
		{"content包装", `{"content":"黄河入海流"}`, "黄河入海流"},
		{"text包装", `{"text":"欲穷千里目"}`, "欲穷千里目"},
		{"summary包装", `{"summary":"更上一层楼"}`, "更上一层楼"},
		{"多键取content优先", `{"content":"甲","text":"乙"}`, "甲"},
		{"未知形态保留原文", `42`, "42"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var f FlexText
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &f))
			assert.Equal(t, tc.want, f.String())
		})
	}
}

func TestFlexTextInStruct(t *testing.T) {
	var out struct {
		Title   FlexText `json:"title"`
		Summary FlexText `json:"summary"`
	}
	raw := `{"title":{"content":"包装标题"},"summary":"直白细纲"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	assert.Equal(t, "包装标题", out.Title.String())
	assert.Equal(t, "直白细纲", out.Summary.String())
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "", CleanText(nil))
	assert.Equal(t, "原样", CleanText("原样"))
	assert.Equal(t, "拆包", CleanText(map[string]interface{}{"content": "拆包"}))
	assert.Equal(t, "次选", CleanText(map[string]interface{}{"text": "次选"}))
	assert.Equal(t, "42", CleanText(42))
}

// 归一化是幂等的：清洗两次与一次结果相同
func TestCleanTextIdempotent(t *testing.T) {
	inputs := []interface{}{
		"已经干净的字符串",
		map[string]interface{}{"content": "需要拆包"},
		nil,
	}
	for _, in := range inputs {
		once := CleanText(in)
		assert.Equal(t, once, CleanText(once))
	}
}
