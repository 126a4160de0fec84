package mealprep_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	should "github.com/stretchr/testify/assert"
	must "github.com/stretchr/testify/require"

	"mealprep"
)

func TestFileConversationLogger_Flush(t *testing.T) {
	var buf bytes.Buffer
	logger := mealprep.NewFileConversationLogger(&buf)

	must.NoError(t, logger.LogTurn(mealprep.TurnLog{Agent: "RecipeAgent", Iteration: 1, Timestamp: time.Now(), Input: "soup"}))
	must.NoError(t, logger.LogTurn(mealprep.TurnLog{Agent: "ShoppingAgent", Iteration: 2, ToolCalls: []mealprep.ToolCallLog{{Name: "save_to_file"}}}))
	should.Zero(t, buf.Len(), "turns are buffered until Flush")

	must.NoError(t, logger.Flush())

	var got struct {
		Session struct {
			Turns []mealprep.TurnLog `json:"turns"`
		} `json:"conversation_session"`
	}
	must.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	must.Len(t, got.Session.Turns, 2)
	should.Equal(t, "soup", got.Session.Turns[0].Input)
	should.Equal(t, "save_to_file", got.Session.Turns[1].ToolCalls[0].Name)
}

func TestFileConversationLogger_NilWriter(t *testing.T) {
	logger := mealprep.NewFileConversationLogger(nil)
	must.NoError(t, logger.LogTurn(mealprep.TurnLog{Agent: "RecipeAgent"}))
	should.NoError(t, logger.Flush())
}

func TestNewConversationLogFilePath(t *testing.T) {
	path := mealprep.NewConversationLogFilePath("Ollama", "llama3.2:latest")
	should.True(t, strings.HasPrefix(path, "./logs/"))
	should.True(t, strings.HasSuffix(path, ".ollama.llama3.2_latest.json"))

	should.True(t, strings.HasSuffix(mealprep.NewConversationLogFilePath("mock", ""), ".mock.json"))
}

func TestPreview(t *testing.T) {
	should.Equal(t, "short", mealprep.Preview("short", 10))
	should.Equal(t, "abcdefg...", mealprep.Preview("abcdefghijklmnop", 10))
	should.Equal(t, "abcdef", mealprep.Preview("abcdef", 2))
}

func TestPreview_MultiByte(t *testing.T) {
	// "é" is two bytes; a byte cut at 5 would split the second one.
	got := mealprep.Preview("ééééé", 8)
	should.Equal(t, "éé...", got)
	should.True(t, utf8.ValidString(got))

	list := strings.Repeat("🥕 carrots\n", 50)
	got = mealprep.Preview(list, 100)
	should.True(t, utf8.ValidString(got))
	should.LessOrEqual(t, len(got), 100)
	should.True(t, strings.HasSuffix(got, "..."))
}
