// Package jsrealm runs scripts in an embedded JavaScript engine and speaks
// remote values about them: evaluate and callFunction results, thrown
// exceptions and console output all go through a remoteval.Realm, and handles
// and sharedIds passed back in resolve to the original engine objects and
// document nodes.
package jsrealm

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/dop251/goja"
	"golang.org/x/net/html"

	"github.com/unkn0wn-root/remoteval"
	"github.com/unkn0wn-root/remoteval/host"
	"github.com/unkn0wn-root/remoteval/remote"
)

// ConsoleFunc receives mirrored console calls. Arguments never carry handles.
type ConsoleFunc func(level string, args []remote.RemoteValue)

type Options struct {
	Realm remoteval.RealmOptions

	// HTML is parsed into the global document; "" gives an empty page.
	HTML string

	OnConsole ConsoleFunc
}

// Realm is an engine instance bound to a codec realm. The engine is single
// threaded; every method serializes on the realm's mutex.
type Realm struct {
	mu    sync.Mutex
	vm    *goja.Runtime
	h     *helpers
	codec *remoteval.Realm
	log   remoteval.Logger

	refs map[*goja.Object]host.Ref
	objs map[host.Ref]goja.Value
	syms map[*goja.Symbol]*host.Symbol

	doc      *html.Node
	nodes    map[*html.Node]*host.Node
	hnodes   map[*host.Node]*html.Node
	wrappers map[*html.Node]*goja.Object
	unwrap   map[*goja.Object]*html.Node

	onConsole ConsoleFunc
}

func New(opts Options) (*Realm, error) {
	codec, err := remoteval.NewRealm(opts.Realm)
	if err != nil {
		return nil, err
	}
	var log remoteval.Logger = remoteval.NopLogger{}
	if opts.Realm.Logger != nil {
		log = opts.Realm.Logger
	}

	r := &Realm{
		vm:        goja.New(),
		codec:     codec,
		log:       log,
		refs:      make(map[*goja.Object]host.Ref),
		objs:      make(map[host.Ref]goja.Value),
		syms:      make(map[*goja.Symbol]*host.Symbol),
		nodes:     make(map[*html.Node]*host.Node),
		hnodes:    make(map[*host.Node]*html.Node),
		wrappers:  make(map[*html.Node]*goja.Object),
		unwrap:    make(map[*goja.Object]*html.Node),
		onConsole: opts.OnConsole,
	}
	if err := r.install(opts.HTML); err != nil {
		_ = codec.Close(context.Background())
		return nil, err
	}
	return r, nil
}

func (r *Realm) install(page string) error {
	var err error
	if r.h, err = loadHelpers(r.vm); err != nil {
		return err
	}
	if err := r.vm.Set("window", r.vm.GlobalObject()); err != nil {
		return err
	}
	if err := r.installConsole(); err != nil {
		return err
	}
	return r.installDocument(page)
}

// Codec is the realm's remote value codec.
func (r *Realm) Codec() *remoteval.Realm { return r.codec }

// Evaluate runs expr and serializes its completion value.
func (r *Realm) Evaluate(expr string, ownership remoteval.Ownership, depth int, awaitPromise bool) (remoteval.EvaluateResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, err := r.vm.RunString(expr)
	return r.settle(v, err, ownership, depth, awaitPromise)
}

// EvaluateCommand runs a script.evaluate command.
func (r *Realm) EvaluateCommand(p remoteval.EvaluateParams) (remoteval.EvaluateResult, error) {
	o, depth, err := r.codec.EvaluateOptions(p)
	if err != nil {
		return remoteval.EvaluateResult{}, err
	}
	return r.Evaluate(p.Expression, o, depth, p.AwaitPromise)
}

// CallFunction runs a script.callFunction command. This and every argument
// are resolved before the function is compiled; an unknown handle rejects
// the call without running anything.
func (r *Realm) CallFunction(p remoteval.CallParams) (remoteval.EvaluateResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.codec.DecodeCall(p)
	if err != nil {
		return remoteval.EvaluateResult{}, err
	}
	this, err := r.toJS(c.This)
	if err != nil {
		return remoteval.EvaluateResult{}, fmt.Errorf("this: %w", err)
	}
	args := make([]goja.Value, len(c.Args))
	for i, a := range c.Args {
		if args[i], err = r.toJS(a); err != nil {
			return remoteval.EvaluateResult{}, fmt.Errorf("arguments[%d]: %w", i, err)
		}
	}

	fv, err := r.vm.RunString("(" + c.Declaration + "\n)")
	if err != nil {
		return r.settle(nil, err, c.Ownership, c.Depth, false)
	}
	fn, ok := goja.AssertFunction(fv)
	if !ok {
		return remoteval.EvaluateResult{}, errors.New("jsrealm: functionDeclaration does not evaluate to a function")
	}
	res, err := fn(this, args...)
	return r.settle(res, err, c.Ownership, c.Depth, p.AwaitPromise)
}

// settle turns a completion into a result. Compile errors already arrive as
// thrown SyntaxError objects.
func (r *Realm) settle(v goja.Value, runErr error, ownership remoteval.Ownership, depth int, awaitPromise bool) (remoteval.EvaluateResult, error) {
	if runErr != nil {
		var ex *goja.Exception
		if errors.As(runErr, &ex) {
			return r.exception(ex.Value(), depth)
		}
		return remoteval.EvaluateResult{}, runErr
	}

	if awaitPromise {
		if obj, ok := v.(*goja.Object); ok && obj.ExportType() == promiseType {
			if p, ok := obj.Export().(*goja.Promise); ok {
				switch p.State() {
				case goja.PromiseStateFulfilled:
					v = p.Result()
				case goja.PromiseStateRejected:
					return r.exception(p.Result(), depth)
				default:
					return remoteval.EvaluateResult{}, errors.New("jsrealm: promise did not settle")
				}
			}
		}
	}

	hv, ex, err := r.snapshot(v, depth, newPass())
	if err != nil {
		return remoteval.EvaluateResult{}, err
	}
	if ex != nil {
		return r.exception(ex.Value(), depth)
	}
	return r.codec.Success(hv, ownership, depth)
}

// snapshot runs toHost under the engine's exception handler. Reading a
// property can run a getter, and whatever it throws comes back as ex.
func (r *Realm) snapshot(v goja.Value, depth int, p *pass) (hv host.Value, ex *goja.Exception, err error) {
	ex = r.vm.Try(func() {
		hv, err = r.toHost(v, depth, p)
	})
	return hv, ex, err
}

func (r *Realm) exception(thrown goja.Value, depth int) (remoteval.EvaluateResult, error) {
	hv, ex, err := r.snapshot(thrown, depth, newPass())
	if err != nil {
		return remoteval.EvaluateResult{}, err
	}
	if ex != nil {
		return remoteval.EvaluateResult{}, fmt.Errorf("jsrealm: serialize thrown value: %w", ex)
	}
	text := "undefined"
	if thrown != nil {
		if ex := r.vm.Try(func() { text = thrown.String() }); ex != nil {
			return remoteval.EvaluateResult{}, fmt.Errorf("jsrealm: exception text: %w", ex)
		}
	}
	return r.codec.Exception(hv, text, depth)
}

var promiseType = reflect.TypeOf((*goja.Promise)(nil))

var consoleLevels = map[string]string{
	"log":   "info",
	"info":  "info",
	"debug": "debug",
	"warn":  "warn",
	"error": "error",
}

func (r *Realm) installConsole() error {
	console := r.vm.NewObject()
	for method, level := range consoleLevels {
		err := console.Set(method, func(fc goja.FunctionCall) goja.Value {
			r.mirror(level, fc.Arguments)
			return goja.Undefined()
		})
		if err != nil {
			return err
		}
	}
	return r.vm.Set("console", console)
}

// mirror runs on the engine goroutine with the realm lock already held.
func (r *Realm) mirror(level string, args []goja.Value) {
	if r.onConsole == nil {
		return
	}
	depth := r.codec.DefaultDepth()
	p := newPass()
	hv := make([]host.Value, len(args))
	for i, a := range args {
		v, ex, err := r.snapshot(a, depth, p)
		if ex != nil {
			err = ex
		}
		if err != nil {
			r.log.Warn("console argument dropped", remoteval.Fields{"realm": r.codec.ID(), "err": err})
			v = host.Undefined{}
		}
		hv[i] = v
	}
	rvs, err := r.codec.LogArgs(hv)
	if err != nil {
		r.log.Warn("console mirror failed", remoteval.Fields{"realm": r.codec.ID(), "err": err})
		return
	}
	r.onConsole(level, rvs)
}

// Disown releases handles held by the realm.
func (r *Realm) Disown(handles ...string) int {
	return r.codec.Disown(handles...)
}

// Close closes the codec realm and interrupts any script still running.
func (r *Realm) Close(ctx context.Context) error {
	r.vm.Interrupt("realm closed")
	return r.codec.Close(ctx)
}
