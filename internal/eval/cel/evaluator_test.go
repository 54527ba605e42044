package cel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hostVars() map[string]interface{} {
	return map[string]interface{}{
		"host": map[string]interface{}{
			"name":     "router1",
			"platform": "ios",
			"port":     22,
			"groups":   []interface{}{"core", "mad"},
			"data":     map[string]interface{}{"site": "mad1", "asn": 65000},
		},
	}
}

func TestEvaluator_Match(t *testing.T) {
	ev, err := NewEvaluator()
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"platform_equals", "host.platform == 'ios'", true},
		{"platform_differs", "host.platform == 'eos'", false},
		{"group_membership", "'core' in host.groups", true},
		{"data_access", "host.data.site.startsWith('mad')", true},
		{"has_macro", "has(host.data.vrf)", false},
		{"combined", "host.name == 'router1' && host.data.asn == 65000", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ev.Match(ctx, tt.expr, hostVars())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluator_Errors(t *testing.T) {
	ev, err := NewEvaluator()
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("Should fail to compile invalid expressions", func(t *testing.T) {
		_, err := ev.Evaluate(ctx, "host.platform ==", hostVars())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to compile expression")
	})

	t.Run("Should reject non boolean results in Match", func(t *testing.T) {
		_, err := ev.Match(ctx, "host.name", hostVars())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "did not return boolean")
	})

	t.Run("Should report missing keys at evaluation", func(t *testing.T) {
		_, err := ev.Match(ctx, "host.data.vrf == 'mgmt'", hostVars())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "evaluation failed")
	})
}

func TestEvaluator_ValidateExpression(t *testing.T) {
	ev, err := NewEvaluator()
	require.NoError(t, err)

	assert.NoError(t, ev.ValidateExpression("host.platform == 'ios'"))
	assert.Error(t, ev.ValidateExpression("1 + 2"))
	assert.Error(t, ev.ValidateExpression("host.platform =="))
}

func TestEvaluator_Cache(t *testing.T) {
	ev, err := NewEvaluator()
	require.NoError(t, err)

	_, err = ev.Match(context.Background(), "host.platform == 'ios'", hostVars())
	require.NoError(t, err)
	assert.Len(t, ev.cache, 1)

	ev.ClearCache()
	assert.Empty(t, ev.cache)
}
