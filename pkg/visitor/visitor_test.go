package visitor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-testimonial-exact/pkg/extract"
	"github.com/shouni/go-testimonial-exact/pkg/render/rendertest"
	"github.com/shouni/go-testimonial-exact/pkg/retry"
	"github.com/shouni/go-testimonial-exact/pkg/visitor"
)

const (
	captionSelector = ".quote figcaption"
	link            = "https://www.example.com/customers/acme"
)

var errNetwork = errors.New("net::ERR_CONNECTION_RESET")

func page(caption string) string {
	return `<html><body><div class="quote"><figcaption>` + caption + `</figcaption></div></body></html>`
}

func fastOptions() visitor.Options {
	return visitor.Options{
		MaxAttempts:       3,
		NavigationTimeout: time.Second,
		Backoff: retry.Config{
			InitialInterval: time.Millisecond,
			MaxInterval:     2 * time.Millisecond,
		},
	}
}

func newVisitor(t *testing.T, r *rendertest.Renderer, opts visitor.Options) *visitor.Visitor {
	t.Helper()
	v, err := visitor.New(r, extract.NewTestimonialExtractor(captionSelector), opts)
	require.NoError(t, err)
	return v
}

func TestNew(t *testing.T) {
	_, err := visitor.New(nil, extract.NewTestimonialExtractor(""), visitor.DefaultOptions())
	assert.Error(t, err)

	_, err = visitor.New(rendertest.NewRenderer(), nil, visitor.DefaultOptions())
	assert.Error(t, err)

	v, err := visitor.New(rendertest.NewRenderer(), extract.NewTestimonialExtractor(""), visitor.Options{})
	require.NoError(t, err)
	assert.NotNil(t, v)
}

func TestDefaultOptions(t *testing.T) {
	opts := visitor.DefaultOptions()
	assert.Equal(t, 3, opts.MaxAttempts)
	assert.Equal(t, 60*time.Second, opts.NavigationTimeout)
}

func TestVisit(t *testing.T) {
	tests := []struct {
		name             string
		responses        []rendertest.Response
		expectedKind     extract.OutcomeKind
		expectedAttempts int
		expectedGaveUp   bool
	}{
		{
			name:             "正常ケース_初回で成功",
			responses:        []rendertest.Response{{HTML: page("Jane Doe, CTO, Acme Corp")}},
			expectedKind:     extract.OutcomeSuccess,
			expectedAttempts: 1,
		},
		{
			name: "正常ケース_一時的な失敗の後に成功",
			responses: []rendertest.Response{
				{Err: errNetwork},
				{HTML: page("Jane Doe, CTO, Acme Corp")},
			},
			expectedKind:     extract.OutcomeSuccess,
			expectedAttempts: 2,
		},
		{
			name:             "エッジケース_キャプションなしはリトライしない",
			responses:        []rendertest.Response{{HTML: `<html><body><p>no quote</p></body></html>`}},
			expectedKind:     extract.OutcomeNotFound,
			expectedAttempts: 1,
		},
		{
			name:             "エッジケース_形式不正はリトライしない",
			responses:        []rendertest.Response{{HTML: page("Jane Doe, Acme Corp")}},
			expectedKind:     extract.OutcomeMalformed,
			expectedAttempts: 1,
		},
		{
			name:             "異常ケース_すべて失敗したら断念する",
			responses:        []rendertest.Response{{Err: errNetwork}},
			expectedKind:     extract.OutcomeTransientError,
			expectedAttempts: 3,
			expectedGaveUp:   true,
		},
		{
			name: "異常ケース_3回目で成功する場合は断念しない",
			responses: []rendertest.Response{
				{Err: errNetwork},
				{Err: errNetwork},
				{HTML: page("Jane Doe, CTO, Acme Corp")},
			},
			expectedKind:     extract.OutcomeSuccess,
			expectedAttempts: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := rendertest.NewRenderer().Handle(link, tt.responses...)
			v := newVisitor(t, r, fastOptions())

			res := v.Visit(context.Background(), link)

			assert.Equal(t, link, res.Link)
			assert.Equal(t, tt.expectedKind, res.Outcome.Kind)
			assert.Equal(t, tt.expectedAttempts, res.Attempts)
			assert.Equal(t, tt.expectedGaveUp, res.GaveUp)
			assert.Equal(t, tt.expectedAttempts, r.Visits(link), "試行ごとに1回だけ遷移するはずです")
			assert.Equal(t, tt.expectedAttempts, r.PagesOpened(), "試行ごとに新しいページを開くはずです")
			assert.Zero(t, r.OpenPages(), "すべてのページが閉じられているはずです")

			if tt.expectedKind == extract.OutcomeSuccess {
				require.NotNil(t, res.Outcome.Record)
				assert.Equal(t, "Acme Corp", res.Outcome.Record.Company)
				assert.Equal(t, link, res.Outcome.Record.Testimonial.URL)
			} else {
				assert.Nil(t, res.Outcome.Record)
			}
			if tt.expectedGaveUp {
				assert.ErrorIs(t, res.Outcome.Err, errNetwork)
			}
		})
	}
}

func TestVisit_NavigationTimeoutPerAttempt(t *testing.T) {
	r := rendertest.NewRenderer().Handle(link,
		rendertest.Response{Hang: true},
		rendertest.Response{HTML: page("Jane Doe, CTO, Acme Corp")},
	)
	opts := fastOptions()
	opts.NavigationTimeout = 20 * time.Millisecond
	v := newVisitor(t, r, opts)

	res := v.Visit(context.Background(), link)

	assert.Equal(t, extract.OutcomeSuccess, res.Outcome.Kind)
	assert.Equal(t, 2, res.Attempts)
	assert.Zero(t, r.OpenPages())
}

func TestVisit_NewPageFailure(t *testing.T) {
	r := rendertest.NewRenderer().Handle(link, rendertest.Response{HTML: page("a, b, c")})
	r.NewPageErr = errors.New("target crashed")
	v := newVisitor(t, r, fastOptions())

	res := v.Visit(context.Background(), link)

	assert.True(t, res.GaveUp)
	assert.Equal(t, 3, res.Attempts)
	assert.Zero(t, r.Visits(link))
}

func TestVisit_CanceledContextStopsRetrying(t *testing.T) {
	r := rendertest.NewRenderer().Handle(link, rendertest.Response{Err: errNetwork})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	v := newVisitor(t, r, fastOptions())

	res := v.Visit(ctx, link)

	assert.True(t, res.GaveUp)
	assert.Equal(t, 1, res.Attempts)
	assert.ErrorIs(t, res.Outcome.Err, context.Canceled)
	assert.Zero(t, r.OpenPages())
}

func TestVisit_SingleAttempt(t *testing.T) {
	r := rendertest.NewRenderer().Handle(link, rendertest.Response{Err: errNetwork})
	opts := fastOptions()
	opts.MaxAttempts = 1
	v := newVisitor(t, r, opts)

	res := v.Visit(context.Background(), link)

	assert.True(t, res.GaveUp)
	assert.Equal(t, 1, res.Attempts)
}
