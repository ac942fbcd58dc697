package crossref

import (
	"html/template"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTaskRefs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []int64
	}{
		{"none", "no references here", nil},
		{"single", "see #12", []int64{12}},
		{"order and dedup", "#7 blocks #3, and #7 again", []int64{7, 3}},
		{"start of text", "#1: done", []int64{1}},
		{"glued to a word", "abc#5 x_#6", nil},
		{"html entity", "it&#39;s", nil},
		{"zero is not a task", "#0", nil},
		{"parenthesised", "(#42)", []int64{42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTaskRefs(tt.text))
		})
	}
}

func TestLinkify(t *testing.T) {
	got := Linkify(`<b>see</b> #12 & "#x"`)
	assert.Equal(t,
		template.HTML(`&lt;b&gt;see&lt;/b&gt; <a href="/task/12/">#12</a> &amp; &#34;#x&#34;`),
		got)

	assert.Equal(t, template.HTML("plain"), Linkify("plain"))
}
