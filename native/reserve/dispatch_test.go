package reserve

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdminDispatcherSetInitialPrice(t *testing.T) {
	e := newEnv(t)
	dispatch := AdminDispatcher(e.engine, e.owner)

	require.NoError(t, dispatch(MethodSetInitialPrice, []byte("200000000000000000")))

	curve, err := e.engine.CurveState()
	require.NoError(t, err)
	require.Equal(t, mustBig("200000000000000000"), curve.InitialPrice)
}

func TestAdminDispatcherDistributionTable(t *testing.T) {
	e := newEnv(t)
	dispatch := AdminDispatcher(e.engine, e.owner)
	recipient := testAddr(0x10)

	payload := `[{"recipient":"` + recipient.String() + `","weightBps":10000}]`
	require.NoError(t, dispatch(MethodSetDistributionTable, []byte(payload)))

	entries, err := e.engine.DistributionTable()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, entries[0].Recipient.Equal(recipient))
	require.Equal(t, uint64(10_000), entries[0].WeightBps)
}

func TestAdminDispatcherStabilizationConfig(t *testing.T) {
	e := newEnv(t)
	dispatch := AdminDispatcher(e.engine, e.owner)

	payload := `{
		"lowerTrigger":"960000000000000000",
		"upperTrigger":"1040000000000000000",
		"lowerTarget":"980000000000000000",
		"upperTarget":"1020000000000000000",
		"cooldownSeconds":120,
		"inflateStep":"5000000000000000000",
		"deflateStep":"5000000000000000000"
	}`
	require.NoError(t, dispatch(MethodSetStabilizationConfig, []byte(payload)))

	config, err := e.engine.StabilizationConfig()
	require.NoError(t, err)
	require.Equal(t, uint64(120), config.CooldownSeconds)
	require.Equal(t, mustBig("960000000000000000"), config.LowerTrigger)
}

func TestAdminDispatcherTransferOwnership(t *testing.T) {
	e := newEnv(t)
	dispatch := AdminDispatcher(e.engine, e.owner)
	next := testAddr(0x03)

	require.NoError(t, dispatch(MethodTransferOwnership, []byte(next.String())))

	owner, ok, err := e.engine.Owner()
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, owner.Equal(next))
}

func TestAdminDispatcherUnknownMethod(t *testing.T) {
	e := newEnv(t)
	dispatch := AdminDispatcher(e.engine, e.owner)

	require.Error(t, dispatch("no-such-method", nil))
	require.Error(t, dispatch(MethodSetInitialPrice, []byte("not-a-number")))
}
