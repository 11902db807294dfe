package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/sillage/models"
)

const pageURL = "https://www.fragrantica.com/perfume/Davidoff/Zino-Davidoff-590.html"

func newTestMemory(t *testing.T) *DomainMemory {
	t.Helper()
	dm := NewDomainMemory(time.Hour)
	t.Cleanup(dm.Stop)
	return dm
}

func TestDispatcher_FirstEngineWins(t *testing.T) {
	httpEng := newFakeEngine("http", outcome{html: "<html>fast</html>"})
	rodEng := newFakeEngine("rod", outcome{html: "<html>slow</html>"})
	mem := newTestMemory(t)
	d := NewDispatcher([]Engine{httpEng, rodEng}, []time.Duration{0, time.Second}, mem)

	res, err := d.Fetch(context.Background(), &FetchRequest{URL: pageURL})
	require.NoError(t, err)
	assert.Equal(t, "http", res.EngineName)
	assert.Equal(t, "<html>fast</html>", res.HTML)
	assert.Equal(t, "http", mem.Get("www.fragrantica.com"))
	assert.Zero(t, rodEng.calls.Load(), "escalated engine must not start once the race is won")
}

func TestDispatcher_EscalatesOnFailure(t *testing.T) {
	httpEng := newFakeEngine("http", outcome{err: models.NewError(models.ErrCodeNavigation, "shell page", nil)})
	rodEng := newFakeEngine("rod", outcome{html: "<html>rendered</html>"})
	mem := newTestMemory(t)
	d := NewDispatcher([]Engine{httpEng, rodEng}, []time.Duration{0, 10 * time.Millisecond}, mem)

	res, err := d.Fetch(context.Background(), &FetchRequest{URL: pageURL})
	require.NoError(t, err)
	assert.Equal(t, "rod", res.EngineName)
	assert.Equal(t, "rod", mem.Get("www.fragrantica.com"))
}

func TestDispatcher_AllFailPrefersStatusError(t *testing.T) {
	httpEng := newFakeEngine("http", outcome{err: StatusError(403, pageURL)})
	rodEng := newFakeEngine("rod", outcome{err: models.NewError(models.ErrCodeNavigation, "net::ERR_FAILED", nil)})
	d := NewDispatcher([]Engine{httpEng, rodEng}, []time.Duration{0, 5 * time.Millisecond}, newTestMemory(t))

	_, err := d.Fetch(context.Background(), &FetchRequest{URL: pageURL})
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeHTTPStatus, models.CodeOf(err))
}

func TestDispatcher_MemoryHitSkipsRace(t *testing.T) {
	httpEng := newFakeEngine("http", outcome{html: "<html>http</html>"})
	rodEng := newFakeEngine("rod", outcome{html: "<html>rod</html>"})
	mem := newTestMemory(t)
	mem.Set("www.fragrantica.com", "rod")
	d := NewDispatcher([]Engine{httpEng, rodEng}, []time.Duration{0, 0}, mem)

	res, err := d.Fetch(context.Background(), &FetchRequest{URL: pageURL})
	require.NoError(t, err)
	assert.Equal(t, "rod", res.EngineName)
	assert.Zero(t, httpEng.calls.Load())
}

func TestDispatcher_MemoryMissFallsBackToRace(t *testing.T) {
	httpEng := newFakeEngine("http", outcome{html: "<html>http</html>"})
	rodEng := newFakeEngine("rod", outcome{err: models.NewError(models.ErrCodeBrowserCrash, "target closed", nil)})
	mem := newTestMemory(t)
	mem.Set("www.fragrantica.com", "rod")
	d := NewDispatcher([]Engine{httpEng, rodEng}, []time.Duration{0, time.Second}, mem)

	res, err := d.Fetch(context.Background(), &FetchRequest{URL: pageURL})
	require.NoError(t, err)
	assert.Equal(t, "http", res.EngineName)
	assert.Equal(t, "http", mem.Get("www.fragrantica.com"))
}

func TestDispatcher_MemoryHitStatusErrorIsFinal(t *testing.T) {
	httpEng := newFakeEngine("http", outcome{err: StatusError(404, pageURL)})
	rodEng := newFakeEngine("rod", outcome{html: "<html>rod</html>"})
	mem := newTestMemory(t)
	mem.Set("www.fragrantica.com", "http")
	d := NewDispatcher([]Engine{httpEng, rodEng}, []time.Duration{0, 0}, mem)

	_, err := d.Fetch(context.Background(), &FetchRequest{URL: pageURL})
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeHTTPStatus, models.CodeOf(err))
	assert.Zero(t, rodEng.calls.Load())
}

func TestDispatcher_CanceledContext(t *testing.T) {
	d := NewDispatcher([]Engine{newFakeEngine("http", outcome{html: "x"})},
		[]time.Duration{time.Second}, newTestMemory(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Fetch(ctx, &FetchRequest{URL: pageURL})
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeTimeout, models.CodeOf(err))
}

func TestExtractDomain(t *testing.T) {
	assert.Equal(t, "www.fragrantica.com", extractDomain(pageURL))
	assert.Equal(t, "example.com", extractDomain("http://example.com:8080/x"))
}
