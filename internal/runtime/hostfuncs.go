package runtime

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"unsafe"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/cellscope/internal/syntax"
)

// sourceStore remembers the source of every tree a script parsed.
// smacker/go-tree-sitter nodes carry no link to their tree, so the source
// is keyed by the root node pointer and found again by walking Parent().
type sourceStore struct {
	mu      sync.RWMutex
	sources map[uintptr][]byte
}

func newSourceStore() *sourceStore {
	return &sourceStore{sources: make(map[uintptr][]byte)}
}

func (s *sourceStore) remember(tree *sitter.Tree, src []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[uintptr(unsafe.Pointer(tree.RootNode()))] = src
}

func (s *sourceStore) lookup(node *sitter.Node) ([]byte, bool) {
	root := node
	for p := root.Parent(); p != nil; p = root.Parent() {
		root = p
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.sources[uintptr(unsafe.Pointer(root))]
	return src, ok
}

// hostFunc builds a builtin that rejects calls with the wrong number of
// arguments before fn runs.
func hostFunc(name string, arity int, fn func(ctx context.Context, args []object.Object) object.Object) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != arity {
			return object.NewArgsError(name, arity, len(args))
		}
		return fn(ctx, args)
	})
}

// stringArg unwraps a string argument called what.
func stringArg(fn, what string, arg object.Object) (string, object.Object) {
	s, ok := arg.(*object.String)
	if !ok {
		return "", object.Errorf("%s: %s must be a string, got %s", fn, what, arg.Type())
	}
	return s.Value(), nil
}

// nodeArg unwraps a proxied *sitter.Node argument.
func nodeArg(fn string, arg object.Object) (*sitter.Node, object.Object) {
	p, ok := arg.(*object.Proxy)
	if !ok {
		return nil, object.Errorf("%s: expected proxy (Node), got %s", fn, arg.Type())
	}
	node, ok := p.Interface().(*sitter.Node)
	if !ok {
		return nil, object.Errorf("%s: expected *sitter.Node, got %T", fn, p.Interface())
	}
	return node, nil
}

// proxy wraps v for scripts, or reports why it could not.
func proxy(fn string, v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		return object.Errorf("%s: proxy error: %v", fn, err)
	}
	return p
}

// parse(path) → *sitter.Tree
func makeParseFn(ss *sourceStore) *object.Builtin {
	return hostFunc("parse", 1, func(ctx context.Context, args []object.Object) object.Object {
		path, errObj := stringArg("parse", "path", args[0])
		if errObj != nil {
			return errObj
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return object.Errorf("parse: reading %s: %v", path, err)
		}
		return parseJulia(ctx, ss, "parse", src)
	})
}

// parse_src(source) → *sitter.Tree
func makeParseSrcFn(ss *sourceStore) *object.Builtin {
	return hostFunc("parse_src", 1, func(ctx context.Context, args []object.Object) object.Object {
		src, errObj := stringArg("parse_src", "source", args[0])
		if errObj != nil {
			return errObj
		}
		return parseJulia(ctx, ss, "parse_src", []byte(src))
	})
}

func parseJulia(ctx context.Context, ss *sourceStore, fn string, src []byte) object.Object {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(syntax.Julia())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return object.Errorf("%s: tree-sitter parse failed: %v", fn, err)
	}
	ss.remember(tree, src)
	return proxy(fn, tree)
}

// node_text(node) → string
//
// Scripts cannot pass the []byte that node.Content wants, so the source
// is looked up here.
func makeNodeTextFn(ss *sourceStore) *object.Builtin {
	return hostFunc("node_text", 1, func(ctx context.Context, args []object.Object) object.Object {
		node, errObj := nodeArg("node_text", args[0])
		if errObj != nil {
			return errObj
		}
		src, ok := ss.lookup(node)
		if !ok {
			return object.Errorf("node_text: no source found for node's tree")
		}
		return object.NewString(node.Content(src))
	})
}

// query(pattern, node) → [{capture: Node}]
func makeQueryFn(ss *sourceStore) *object.Builtin {
	return hostFunc("query", 2, func(ctx context.Context, args []object.Object) object.Object {
		pattern, errObj := stringArg("query", "pattern", args[0])
		if errObj != nil {
			return errObj
		}
		node, errObj := nodeArg("query", args[1])
		if errObj != nil {
			return errObj
		}
		src, ok := ss.lookup(node)
		if !ok {
			return object.Errorf("query: no source found for node's tree")
		}

		q, err := sitter.NewQuery([]byte(pattern), syntax.Julia())
		if err != nil {
			return object.Errorf("query: invalid pattern: %v", err)
		}
		defer q.Close()
		qc := sitter.NewQueryCursor()
		defer qc.Close()
		qc.Exec(q, node)

		results := []object.Object{}
		for {
			m, ok := qc.NextMatch()
			if !ok {
				return object.NewList(results)
			}
			m = qc.FilterPredicates(m, src)
			captures := make(map[string]object.Object, len(m.Captures))
			for _, c := range m.Captures {
				p := proxy("query", c.Node)
				if _, failed := p.(*object.Error); failed {
					return p
				}
				captures[q.CaptureNameForId(c.Index)] = p
			}
			results = append(results, object.NewMap(captures))
		}
	})
}

// node_child(node, field) → Node or nil
//
// A missing field is Risor nil rather than a proxied Go nil pointer.
func makeNodeChildFn() *object.Builtin {
	return hostFunc("node_child", 2, func(ctx context.Context, args []object.Object) object.Object {
		node, errObj := nodeArg("node_child", args[0])
		if errObj != nil {
			return errObj
		}
		field, errObj := stringArg("node_child", "field", args[1])
		if errObj != nil {
			return errObj
		}
		child := node.ChildByFieldName(field)
		if child == nil {
			return object.Nil
		}
		return proxy("node_child", child)
	})
}

// logObject is the script's log global.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string)  { l.logger.Info("runtime.script", "message", msg) }
func (l *logObject) Warn(msg string)  { l.logger.Warn("runtime.script", "message", msg) }
func (l *logObject) Error(msg string) { l.logger.Error("runtime.script", "message", msg) }
