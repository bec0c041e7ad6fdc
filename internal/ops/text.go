package ops

import (
	"context"
	"fmt"
	"regexp"

	"github.com/spherical/redact-edge/internal/domain"
)

// DeleteText removes every occurrence of its targets from every page,
// ignoring case.
type DeleteText struct {
	edit
	targets []string
}

func NewDeleteText(deps Deps, targets []string) *DeleteText {
	return &DeleteText{
		edit:    edit{deps: deps.withDefaults(), kind: domain.OpDeleteText, strip: true, optimize: true},
		targets: nonEmpty(targets),
	}
}

func (o *DeleteText) Kind() domain.OperationKind { return domain.OpDeleteText }

func (o *DeleteText) Apply(ctx context.Context, in, out string) Result {
	if len(o.targets) == 0 {
		return Skipped("no text to delete")
	}
	return o.run(ctx, in, out, func(doc domain.Document) (bool, string, error) {
		n, err := doc.RewriteText(deleter(o.targets))
		if err != nil {
			return false, "", err
		}
		if n == 0 {
			return false, "no occurrences found", nil
		}
		return true, fmt.Sprintf("removed text from %d run(s)", n), nil
	})
}

func deleter(targets []string) domain.TextRewriter {
	pairs := make([]domain.TextPair, len(targets))
	for i, t := range targets {
		pairs[i] = domain.TextPair{Find: t}
	}
	return replacer(pairs)
}

// ReplaceText replaces every occurrence of each find string, ignoring case,
// applying the pairs in order. A later pair may match text produced by an
// earlier one.
type ReplaceText struct {
	edit
	pairs []domain.TextPair
}

func NewReplaceText(deps Deps, pairs []domain.TextPair) *ReplaceText {
	kept := make([]domain.TextPair, 0, len(pairs))
	for _, p := range pairs {
		if p.Find != "" {
			kept = append(kept, p)
		}
	}
	return &ReplaceText{
		edit:  edit{deps: deps.withDefaults(), kind: domain.OpReplaceText, strip: true},
		pairs: kept,
	}
}

func (o *ReplaceText) Kind() domain.OperationKind { return domain.OpReplaceText }

func (o *ReplaceText) Apply(ctx context.Context, in, out string) Result {
	if len(o.pairs) == 0 {
		return Skipped("no replacement pairs")
	}
	fn := replacer(o.pairs)
	return o.run(ctx, in, out, func(doc domain.Document) (bool, string, error) {
		n, err := doc.RewriteText(fn)
		if err != nil {
			return false, "", err
		}
		if n == 0 {
			return false, "no occurrences found", nil
		}
		return true, fmt.Sprintf("replaced text in %d run(s)", n), nil
	})
}

func replacer(pairs []domain.TextPair) domain.TextRewriter {
	patterns := make([]*regexp.Regexp, len(pairs))
	for i, p := range pairs {
		patterns[i] = regexp.MustCompile("(?i)" + regexp.QuoteMeta(p.Find))
	}
	return func(s string) (string, bool) {
		out := s
		for i, re := range patterns {
			out = re.ReplaceAllLiteralString(out, pairs[i].Replace)
		}
		return out, out != s
	}
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
