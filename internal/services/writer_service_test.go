// internal/services/writer_service_test.go
package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteChapterAutoReplacesContent(t *testing.T) {
	stack := newTestStack(t)
	project := stack.newProjectWithChapters(t, "开篇细纲")
	chapterID := project.Chapters[0].ID
	require.NoError(t, stack.writer.SaveContent(project.ID, 0, "将被整体替换的旧稿"))

	stack.provider.respond = respondText("焕然一新的正文。")

	result, err := stack.writer.WriteChapter(context.Background(), WriteRequest{
		ProjectID:    project.ID,
		ChapterIndex: 0,
		Mode:         WriteModeAuto,
	})
	require.NoError(t, err)
	assert.Equal(t, chapterID, result.ChapterID)
	assert.Equal(t, "焕然一新的正文。", result.Content)

	saved, _ := stack.projects.Get(project.ID)
	assert.Equal(t, "焕然一新的正文。", saved.Content[chapterID])

	// 正文写作走低档模型
	assert.Equal(t, "fake-low", stack.provider.lastCall(t).Model)
}

func TestWriteChapterContinueAppends(t *testing.T) {
	stack := newTestStack(t)
	project := stack.newProjectWithChapters(t, "开篇细纲")
	chapterID := project.Chapters[0].ID
	require.NoError(t, stack.writer.SaveContent(project.ID, 0, "已有的开头。"))

	stack.provider.respond = respondText("继续展开的段落。")

	result, err := stack.writer.WriteChapter(context.Background(), WriteRequest{
		ProjectID:    project.ID,
		ChapterIndex: 0,
		Mode:         WriteModeContinue,
	})
	require.NoError(t, err)
	assert.Equal(t, "已有的开头。\n继续展开的段落。", result.Content)

	saved, _ := stack.projects.Get(project.ID)
	assert.Equal(t, "已有的开头。\n继续展开的段落。", saved.Content[chapterID])
}

// 首章使用字面占位上文，次章截取上一章结尾800字
func TestWriteChapterContextWindows(t *testing.T) {
	stack := newTestStack(t)
	project := stack.newProjectWithChapters(t, "第一章细纲", "第二章细纲")

	stack.provider.respond = respondText("正文")

	_, err := stack.writer.WriteChapter(context.Background(), WriteRequest{
		ProjectID:    project.ID,
		ChapterIndex: 0,
		Mode:         WriteModeAuto,
	})
	require.NoError(t, err)
	assert.Contains(t, stack.provider.lastCall(t).Prompt, "（这是第一章，无上文）")

	// 上一章正文超长，提示词里只带结尾片段
	longBody := strings.Repeat("前", 1000) + "章末句"
	require.NoError(t, stack.writer.SaveContent(project.ID, 0, longBody))

	_, err = stack.writer.WriteChapter(context.Background(), WriteRequest{
		ProjectID:    project.ID,
		ChapterIndex: 1,
		Mode:         WriteModeAuto,
	})
	require.NoError(t, err)

	prompt := stack.provider.lastCall(t).Prompt
	assert.Contains(t, prompt, "章末句")
	assert.NotContains(t, prompt, longBody, "完整上一章正文不应进入提示词")
	assert.Contains(t, prompt, "..."+tailRunes(longBody, prevChapterTailRunes))
}

func TestWriteChapterMimicryOverridesStyle(t *testing.T) {
	stack := newTestStack(t)
	project := stack.newProjectWithChapters(t, "细纲")
	require.NoError(t, stack.planner.UpdateSettings(project.ID, []string{"热血"}, []string{"悲怆"}))

	stack.provider.respond = respondText("正文")

	_, err := stack.writer.WriteChapter(context.Background(), WriteRequest{
		ProjectID:    project.ID,
		ChapterIndex: 0,
		Mode:         WriteModeAuto,
	})
	require.NoError(t, err)
	prompt := stack.provider.lastCall(t).Prompt
	assert.Contains(t, prompt, "【热血】")
	assert.Contains(t, prompt, "【悲怆】")

	_, err = stack.writer.WriteChapter(context.Background(), WriteRequest{
		ProjectID:    project.ID,
		ChapterIndex: 0,
		Mode:         WriteModeAuto,
		Mimicry:      Mimicry{Active: true, Name: "金庸"},
	})
	require.NoError(t, err)
	prompt = stack.provider.lastCall(t).Prompt
	assert.Contains(t, prompt, "模仿作家【金庸】")
	assert.NotContains(t, prompt, "【热血】", "拟态激活时不再附带常规风格指令")
}

func TestSaveContentRejectsBadIndex(t *testing.T) {
	stack := newTestStack(t)
	project := stack.newProjectWithChapters(t, "细纲")

	require.NoError(t, stack.writer.SaveContent(project.ID, 0, "手动稿"))
	require.Error(t, stack.writer.SaveContent(project.ID, 5, "不应写入"))
}

func TestCountWords(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    int
	}{
		{"空文本", "", 0},
		{"中文去空白计字符", "春眠不觉晓 处处闻啼鸟", 10},
		{"中英混排按字符", "他说 hello 然后离开", len([]rune("他说hello然后离开"))},
		{"纯英文按词", "the quick brown fox", 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CountWords(tc.content))
		})
	}
}

func TestTailRunes(t *testing.T) {
	assert.Equal(t, "短句", tailRunes("短句", 300))
	assert.Equal(t, "丙丁", tailRunes("甲乙丙丁", 2))
}
