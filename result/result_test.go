package result

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/MBemera/Radsim-sub001/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOKAndFail(t *testing.T) {
	ok := OK(map[string]any{"output": "hi"})
	assert.True(t, ok.Success)
	assert.Empty(t, ok.Error)
	assert.Equal(t, "hi", ok.Data["output"])

	fail := Fail("boom", nil)
	assert.False(t, fail.Success)
	assert.Equal(t, "boom", fail.Error)
	assert.NotNil(t, fail.Data)
}

func TestFromLegacy(t *testing.T) {
	res := FromLegacy(map[string]any{
		"success": true,
		"error":   "",
		"stdout":  "done",
		"code":    float64(0),
	})
	assert.True(t, res.Success)
	assert.Empty(t, res.Error)
	assert.Equal(t, "done", res.Data["stdout"])
	assert.NotContains(t, res.Data, "success")
	assert.NotContains(t, res.Data, "error")
}

func TestString_RendersJSON(t *testing.T) {
	res := Fail("nope", map[string]any{"path": "x.txt"})

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.String()), &decoded))
	assert.Equal(t, false, decoded["success"])
	assert.Equal(t, "nope", decoded["error"])
	assert.Equal(t, "x.txt", decoded["data"].(map[string]any)["path"])
}

func TestWrap_Success(t *testing.T) {
	fn := Wrap("echo", func(ctx context.Context, args map[string]any) (string, error) {
		return "hello", nil
	})

	res := fn(context.Background(), nil)
	assert.True(t, res.Success)
	assert.Equal(t, "echo", res.ToolName)
	assert.Equal(t, "hello", res.Data["output"])
	assert.GreaterOrEqual(t, res.Duration, time.Duration(0))
}

func TestWrap_ErrorBecomesFailedResult(t *testing.T) {
	fn := Wrap("broken", func(ctx context.Context, args map[string]any) (string, error) {
		return "", errors.New("kaboom")
	})

	res := fn(context.Background(), nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "kaboom")
	assert.Equal(t, "broken", res.ToolName)
}

func TestWrap_PanicBecomesFailedResult(t *testing.T) {
	fn := Wrap("panicky", func(ctx context.Context, args map[string]any) (string, error) {
		panic("kaboom")
	})

	res := fn(context.Background(), nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "kaboom")
	assert.Equal(t, "panicky", res.ToolName)
}

func TestWrap_JSONOutputStaysOutput(t *testing.T) {
	for _, output := range []string{
		`{"rows": 3}`,
		`{"success": false, "error": "config validation failed", "retries": 3}`,
	} {
		fn := Wrap("jsonout", func(ctx context.Context, args map[string]any) (string, error) {
			return output, nil
		})

		res := fn(context.Background(), nil)
		assert.True(t, res.Success)
		assert.Empty(t, res.Error)
		assert.Equal(t, output, res.Data["output"])
	}
}
