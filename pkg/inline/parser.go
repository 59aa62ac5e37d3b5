package inline

import (
	"sort"

	"github.com/parsehook/mdstream/internal/lru"
	"github.com/parsehook/mdstream/pkg/mdoc"
)

// Options configures a single Parse call.
type Options struct {
	// Cache enables reading from and writing to the parser's LRU cache.
	// When false, Parse neither reads nor writes the cache, per §4.1.
	Cache bool
}

// Parser folds an ordered list of plugins over a text run to build an
// inline node tree, with an LRU cache keyed by input text.
type Parser struct {
	plugins []Plugin
	cache   *lru.Cache[string, []*Node]
}

// DefaultMaxCacheEntries is the default LRU capacity; 0 disables caching
// entirely.
const DefaultMaxCacheEntries = 2000

// New creates a Parser with the default plugin set (§4.1) and a cache
// bounded to maxCacheEntries entries.
func New(maxCacheEntries int) *Parser {
	return NewWithPlugins(DefaultPlugins(), maxCacheEntries)
}

// NewWithPlugins creates a Parser with a caller-supplied plugin list,
// sorted stably by Priority.
func NewWithPlugins(plugins []Plugin, maxCacheEntries int) *Parser {
	sorted := make([]Plugin, len(plugins))
	copy(sorted, plugins)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })
	return &Parser{
		plugins: sorted,
		cache:   lru.New[string, []*Node](maxCacheEntries),
	}
}

// Parse tokenizes src into an inline node tree using the configured
// plugin fold.
func (p *Parser) Parse(src string, opts Options) []*Node {
	if opts.Cache && !p.cache.Disabled() {
		if hit, ok := p.cache.Get(src); ok {
			return hit
		}
	}

	nodes := []*Node{text(src)}
	for _, plugin := range p.plugins {
		nodes = applyPlugin(nodes, plugin)
	}

	if opts.Cache && !p.cache.Disabled() {
		p.cache.Put(src, nodes)
	}
	return nodes
}

// CacheLen exposes the current cache population for tests/metrics.
func (p *Parser) CacheLen() int { return p.cache.Len() }

// applyPlugin walks nodes, tokenizing text nodes per plugin and
// recursing into the children of already-structured nodes.
func applyPlugin(nodes []*Node, plugin Plugin) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Kind != mdoc.InlineText {
			if len(n.Children) > 0 {
				n.Children = applyPlugin(n.Children, plugin)
			}
			out = append(out, n)
			continue
		}
		out = append(out, applyToText(n, plugin)...)
	}
	return out
}

func applyToText(n *Node, plugin Plugin) []*Node {
	switch plugin.Kind {
	case KindAST:
		if plugin.AST == nil || plugin.AST.Visit == nil {
			return []*Node{n}
		}
		if replacement := plugin.AST.Visit(n, &VisitContext{}); replacement != nil {
			return []*Node{replacement}
		}
		return []*Node{n}
	case KindRegex:
		return applyRegex(n, plugin.Regex)
	default:
		return []*Node{n}
	}
}

func applyRegex(n *Node, rp *RegexPlugin) []*Node {
	if rp == nil || rp.Re == nil {
		return []*Node{n}
	}
	if rp.FastCheck != nil && !rp.FastCheck(n.Text) {
		return []*Node{n}
	}

	locs := rp.Re.FindAllStringSubmatchIndex(n.Text, -1)
	if len(locs) == 0 {
		return []*Node{n}
	}

	var out []*Node
	cursor := 0
	matched := false
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		if start < cursor {
			continue // overlapped with a previously accepted match
		}
		if rp.Validate != nil && !rp.Validate(n.Text, start, end) {
			continue
		}
		if start > cursor {
			out = append(out, text(n.Text[cursor:start]))
		}
		if node := rp.ToNode(submatchStrings(n.Text, loc)); node != nil {
			out = append(out, node)
		}
		cursor = end
		matched = true
	}
	if !matched {
		return []*Node{n}
	}
	if cursor < len(n.Text) {
		out = append(out, text(n.Text[cursor:]))
	}
	return out
}

func submatchStrings(s string, loc []int) []string {
	groups := len(loc) / 2
	out := make([]string, groups)
	for i := 0; i < groups; i++ {
		a, b := loc[2*i], loc[2*i+1]
		if a < 0 || b < 0 {
			out[i] = ""
			continue
		}
		out[i] = s[a:b]
	}
	return out
}
