package answer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/answerdesk/internal/metrics"
	"github.com/leapstack-labs/answerdesk/internal/testutil"
	"github.com/leapstack-labs/answerdesk/pkg/core"
)

func TestNewFeedback_Defaults(t *testing.T) {
	tests := []struct {
		name      string
		style     FeedbackStyle
		delay     time.Duration
		wantStyle FeedbackStyle
		wantDelay time.Duration
	}{
		{name: "zero values", wantStyle: StyleToast, wantDelay: DefaultDismissAfter},
		{name: "banner kept", style: StyleBanner, delay: 4 * time.Second, wantStyle: StyleBanner, wantDelay: 4 * time.Second},
		{name: "unknown style", style: "popup", delay: 3 * time.Second, wantStyle: StyleToast, wantDelay: 3 * time.Second},
		{name: "too short", delay: time.Second, wantStyle: StyleToast, wantDelay: MinDismissAfter},
		{name: "too long", delay: time.Minute, wantStyle: StyleToast, wantDelay: MaxDismissAfter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFeedback(tt.style, tt.delay, nil, nil)
			assert.Equal(t, tt.wantStyle, f.Style())
			assert.Equal(t, tt.wantDelay, f.DismissAfter())
		})
	}
}

func TestFeedbackNotify_Toast(t *testing.T) {
	doc := newTestDocument(t, core.AnswerMutationResult{})
	f := NewFeedback(StyleToast, 3*time.Second, nil, testutil.NewTestLogger(t))

	f.Notify(context.Background(), doc, "Файл удалён", core.SeveritySuccess)

	toast := doc.Find("#" + IDFeedback + " .feedback")
	require.Equal(t, 1, toast.Length())
	assert.True(t, toast.HasClass("feedback-toast"))
	assert.True(t, toast.HasClass("feedback-success"))
	assert.Equal(t, "Файл удалён", toast.Text())

	dismiss, _ := toast.Attr("data-init")
	assert.Equal(t, "setTimeout(() => el.remove(), 3000)", dismiss)
	role, _ := toast.Attr("role")
	assert.Equal(t, "status", role)
}

func TestFeedbackNotify_Banner(t *testing.T) {
	tests := []struct {
		severity  core.Severity
		wantClass string
	}{
		{core.SeveritySuccess, "alert-success"},
		{core.SeverityError, "alert-danger"},
		{core.SeverityInfo, "alert-info"},
	}

	for _, tt := range tests {
		t.Run(tt.severity.String(), func(t *testing.T) {
			doc := newTestDocument(t, core.AnswerMutationResult{})
			f := NewFeedback(StyleBanner, 5*time.Second, nil, nil)

			f.Notify(context.Background(), doc, "message", tt.severity)

			banner := doc.Find("#" + IDFeedback + " .feedback")
			require.Equal(t, 1, banner.Length())
			assert.True(t, banner.HasClass("alert"))
			assert.True(t, banner.HasClass(tt.wantClass))
			assert.Equal(t, 1, banner.Find("button.btn-close").Length())
			dismiss, _ := banner.Attr("data-init")
			assert.Contains(t, dismiss, "5000")
		})
	}
}

func TestFeedbackNotify_EscapesMessage(t *testing.T) {
	doc := newTestDocument(t, core.AnswerMutationResult{})
	f := NewFeedback(StyleToast, 0, nil, nil)

	f.Notify(context.Background(), doc, "Ошибка: <script>alert(1)</script>", core.SeverityError)

	assert.Equal(t, 0, doc.Find("#"+IDFeedback+" script").Length())
	assert.Equal(t, "Ошибка: <script>alert(1)</script>", doc.Find("#"+IDFeedback+" .feedback-text").Text())
}

func TestFeedbackNotify_OverlappingMessagesAreIndependent(t *testing.T) {
	doc := newTestDocument(t, core.AnswerMutationResult{})
	f := NewFeedback(StyleToast, 0, nil, nil)

	f.Notify(context.Background(), doc, "first", core.SeveritySuccess)
	f.Notify(context.Background(), doc, "second", core.SeverityError)

	toasts := doc.Find("#" + IDFeedback + " .feedback")
	require.Equal(t, 2, toasts.Length())

	first, _ := toasts.Eq(0).Attr("id")
	second, _ := toasts.Eq(1).Attr("id")
	assert.NotEqual(t, first, second, "each message needs its own element")
	assert.Equal(t, "first", toasts.Eq(0).Text())
	assert.Equal(t, "second", toasts.Eq(1).Text())
}

func TestFeedbackNotify_SkipsBlankMessages(t *testing.T) {
	doc := newTestDocument(t, core.AnswerMutationResult{})
	reg := prometheus.NewRegistry()
	f := NewFeedback(StyleToast, 0, metrics.NewWithRegistry(reg), nil)

	f.Notify(context.Background(), doc, "  ", core.SeverityInfo)
	f.Notify(context.Background(), doc, "", core.SeveritySuccess)

	assert.Equal(t, 0, doc.Find("#"+IDFeedback+" .feedback").Length())
	count, err := promtest.GatherAndCount(reg, "answerdesk_feedback_total")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestFeedbackNotify_NeverFails(t *testing.T) {
	// No feedback region: the failure is logged, not returned or panicked.
	doc, err := ParseDocument("<html><body></body></html>")
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	f := NewFeedback(StyleToast, 0, metrics.NewWithRegistry(reg), testutil.NewTestLogger(t))

	assert.NotPanics(t, func() {
		f.Notify(context.Background(), doc, "lost", core.SeverityError)
	})
	count, err := promtest.GatherAndCount(reg, "answerdesk_feedback_total")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestFeedbackNotify_CountsMessages(t *testing.T) {
	doc := newTestDocument(t, core.AnswerMutationResult{})
	reg := prometheus.NewRegistry()
	f := NewFeedback(StyleToast, 0, metrics.NewWithRegistry(reg), nil)

	f.Notify(context.Background(), doc, "a", core.SeveritySuccess)
	f.Notify(context.Background(), doc, "b", core.SeveritySuccess)

	expected := `
# HELP answerdesk_feedback_total Feedback messages shown to users by severity.
# TYPE answerdesk_feedback_total counter
answerdesk_feedback_total{severity="success"} 2
`
	assert.NoError(t, promtest.GatherAndCompare(reg, strings.NewReader(expected), "answerdesk_feedback_total"))
}
