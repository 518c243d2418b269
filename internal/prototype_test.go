package cwrap

import (
	"errors"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/text/encoding/charmap"

	. "github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

var _ = Describe("Prototype", func() {
	var registry *Registry
	var lib *fakeLibrary
	var logs *observer.ObservedLogs

	BeforeEach(func() {
		var core zapcore.Core
		core, logs = observer.New(zapcore.DebugLevel)
		registry = NewRegistry(NewConfig().WithLogger(zap.New(core)))
		lib = newFakeLibrary()
	})

	When("the signature is malformed", func() {
		It("fails at declaration", func() {
			_, err := NewPrototype(registry, lib, "bad signature")
			gomega.Expect(err).To(gomega.MatchError(ErrMalformedSignature))
			gomega.Expect(registry.Prototypes()).To(gomega.BeEmpty())
		})

		It("panics in MustPrototype", func() {
			gomega.Expect(func() {
				MustPrototype(registry, lib, "int abs(int")
			}).To(gomega.Panic())
		})
	})

	Context("a resolvable prototype", func() {
		var abs *Prototype

		BeforeEach(func() {
			var err error
			abs, err = NewPrototype(registry, lib, "int abs(int)")
			gomega.Expect(err).To(gomega.BeNil())
		})

		It("starts unresolved and does not look up its symbol", func() {
			gomega.Expect(abs.State()).To(gomega.Equal(StateUnresolved))
			gomega.Expect(lib.lookups).ToNot(gomega.HaveKey("abs"))
		})

		It("resolves lazily on the first call", func() {
			res, err := abs.Call(ctx, -3)
			gomega.Expect(err).To(gomega.BeNil())
			gomega.Expect(res).To(gomega.Equal(int32(3)))
			gomega.Expect(abs.State()).To(gomega.Equal(StateResolved))

			res, err = abs.Call(ctx, 0)
			gomega.Expect(err).To(gomega.BeNil())
			gomega.Expect(res).To(gomega.Equal(int32(0)))
		})

		It("resolves at most once", func() {
			for i := 0; i < 3; i++ {
				state, err := abs.Resolve()
				gomega.Expect(err).To(gomega.BeNil())
				gomega.Expect(state).To(gomega.Equal(StateResolved))
			}
			_, err := abs.Call(ctx, 5)
			gomega.Expect(err).To(gomega.BeNil())
			gomega.Expect(lib.lookups["abs"]).To(gomega.Equal(1))
		})

		It("installs the calling convention", func() {
			_, err := abs.Resolve()
			gomega.Expect(err).To(gomega.BeNil())
			gomega.Expect(lib.prepared["abs"]).To(gomega.Equal(CallConv{Args: []NativeKind{KindInt32}, Return: KindInt32}))
		})

		It("is listed by the registry", func() {
			gomega.Expect(registry.Prototypes()).To(gomega.ContainElement(abs))
		})

		It("describes itself", func() {
			gomega.Expect(abs.Name()).To(gomega.Equal("abs"))
			gomega.Expect(abs.String()).To(gomega.Equal(`Prototype("int abs(int)")`))

			bound := MustPrototype(registry, lib, "int abs(int)", Bind())
			gomega.Expect(bound.String()).To(gomega.Equal(`Prototype("int abs(int)", bind=true)`))
		})

		It("is returned as is when it is not bound", func() {
			gomega.Expect(abs.Get(struct{}{})).To(gomega.BeIdenticalTo(abs))
		})

		It("rejects the wrong number of arguments", func() {
			_, err := abs.Call(ctx)
			gomega.Expect(err).To(gomega.MatchError(ErrArgumentCount))

			_, err = abs.Call(ctx, 1, 2)
			gomega.Expect(err).To(gomega.MatchError(ErrArgumentCount))
			gomega.Expect(err.Error()).To(gomega.ContainSubstring("function abs called with 2 argument(s), expected 1 arg(s)"))
		})
	})

	Context("argument errors", func() {
		It("reports the index of the offending argument", func() {
			add := MustPrototype(registry, lib, "int add(int, int)")

			_, err := add.Call(ctx, 1, "two")
			gomega.Expect(err).To(gomega.MatchError(ErrArgumentType))

			var argErr *ArgumentTypeError
			gomega.Expect(errors.As(err, &argErr)).To(gomega.BeTrue())
			gomega.Expect(argErr.Index).To(gomega.Equal(1))
			gomega.Expect(argErr.Value).To(gomega.Equal("two"))
			gomega.Expect(argErr.ValueType).To(gomega.Equal("string"))
			gomega.Expect(argErr.Expected).To(gomega.ContainSubstring("int"))
			gomega.Expect(errors.Unwrap(argErr)).To(gomega.BeNil())
		})

		It("rejects values out of range of the slot", func() {
			abs := MustPrototype(registry, lib, "int abs(int)")
			_, err := abs.Call(ctx, int64(1)<<40)
			gomega.Expect(err).To(gomega.MatchError(ErrArgumentType))

			_, err = abs.Call(ctx, 1.5)
			gomega.Expect(err).To(gomega.MatchError(ErrArgumentType))
		})
	})

	Context("missing symbols", func() {
		It("fails resolution when leniency is not requested", func() {
			missing := MustPrototype(registry, lib, "void missing_fn(int)")
			state, err := missing.Resolve()
			gomega.Expect(state).To(gomega.Equal(StateFailed))
			gomega.Expect(err).To(gomega.MatchError(ErrSymbolNotFound))
			gomega.Expect(err.Error()).To(gomega.ContainSubstring("missing_fn"))
			gomega.Expect(err.Error()).To(gomega.ContainSubstring("libfake"))

			_, err = missing.Call(ctx, 1)
			gomega.Expect(err).To(gomega.MatchError(ErrUnresolvedOperation))
			gomega.Expect(err).To(gomega.MatchError(ErrSymbolNotFound))
		})

		It("degrades to failed when leniency is requested", func() {
			missing := MustPrototype(registry, lib, "void missing_fn(int)", AllowMissingSymbol())
			state, err := missing.Resolve()
			gomega.Expect(err).To(gomega.BeNil())
			gomega.Expect(state).To(gomega.Equal(StateFailed))

			_, err = missing.Call(ctx, 1)
			gomega.Expect(err).To(gomega.MatchError(ErrUnresolvedOperation))
			gomega.Expect(err.Error()).To(gomega.ContainSubstring("has not been properly resolved"))
		})

		It("never reverts a failed state", func() {
			missing := MustPrototype(registry, lib, "int late(int)", AllowMissingSymbol())
			_, _ = missing.Resolve()

			lib.symbols["late"] = func(args []any) any { return int32(1) }
			state, err := missing.Resolve()
			gomega.Expect(err).To(gomega.BeNil())
			gomega.Expect(state).To(gomega.Equal(StateFailed))
			gomega.Expect(lib.lookups["late"]).To(gomega.Equal(1))
		})
	})

	Context("return types", func() {
		It("abandons resolution softly when the return type is unknown", func() {
			p := MustPrototype(registry, lib, "struct_tm abs(int)")
			state, err := p.Resolve()
			gomega.Expect(err).To(gomega.BeNil())
			gomega.Expect(state).To(gomega.Equal(StateFailed))
			gomega.Expect(logs.FilterMessage("the type used as return type is not registered as a return type").Len()).To(gomega.Equal(1))

			_, err = p.Call(ctx, 1)
			gomega.Expect(err).To(gomega.MatchError(ErrUnresolvedOperation))
		})

		It("hints at the _ref and _obj types for classes", func() {
			_, err := registry.RegisterClass(&testObject{})
			gomega.Expect(err).To(gomega.BeNil())

			p := MustPrototype(registry, lib, "test_object ident(void*)")
			state, err := p.Resolve()
			gomega.Expect(err).To(gomega.BeNil())
			gomega.Expect(state).To(gomega.Equal(StateFailed))

			entries := logs.FilterMessage("the type used as return type is not registered as a return type").All()
			gomega.Expect(entries).To(gomega.HaveLen(1))
			gomega.Expect(entries[0].ContextMap()).To(gomega.HaveKeyWithValue("hint", "correct type may be: test_object_ref or test_object_obj"))
		})

		It("returns nil for void functions", func() {
			noop := MustPrototype(registry, lib, "void noop()")
			res, err := noop.Call(ctx)
			gomega.Expect(err).To(gomega.BeNil())
			gomega.Expect(res).To(gomega.BeNil())
		})
	})

	Context("parameter types", func() {
		It("fails hard on unknown parameter types", func() {
			p := MustPrototype(registry, lib, "int abs(struct_tm)")
			state, err := p.Resolve()
			gomega.Expect(state).To(gomega.Equal(StateFailed))
			gomega.Expect(err).To(gomega.MatchError(ErrUnknownType))

			_, err = p.Call(ctx, 1)
			gomega.Expect(err).To(gomega.MatchError(ErrUnresolvedOperation))
		})

		It("treats a single void parameter as no parameters", func() {
			answer := MustPrototype(registry, lib, "int answer(void)")
			res, err := answer.Call(ctx)
			gomega.Expect(err).To(gomega.BeNil())
			gomega.Expect(res).To(gomega.Equal(int32(42)))
			gomega.Expect(lib.prepared["answer"].Args).To(gomega.BeEmpty())
		})

		It("rejects void next to other parameters", func() {
			p := MustPrototype(registry, lib, "int add(int, void)")
			_, err := p.Resolve()
			gomega.Expect(err).To(gomega.MatchError(ErrUnknownType))
		})
	})

	Context("strings", func() {
		It("encodes arguments and decodes results", func() {
			echo := MustPrototype(registry, lib, "char* echo(char*)")
			res, err := echo.Call(ctx, "héllo")
			gomega.Expect(err).To(gomega.BeNil())
			gomega.Expect(res).To(gomega.Equal("héllo"))
			gomega.Expect(lib.prepared["echo"].Return).To(gomega.Equal(KindCString))
		})

		It("passes nil as NULL and returns NULL as nil", func() {
			echo := MustPrototype(registry, lib, "char* echo(char*)")
			res, err := echo.Call(ctx, nil)
			gomega.Expect(err).To(gomega.BeNil())
			gomega.Expect(res).To(gomega.BeNil())
		})

		It("keeps the empty string apart from NULL", func() {
			echo := MustPrototype(registry, lib, "char* echo(char*)")
			res, err := echo.Call(ctx, "")
			gomega.Expect(err).To(gomega.BeNil())
			gomega.Expect(res).To(gomega.Equal(""))
		})

		It("rejects strings with a NUL byte", func() {
			echo := MustPrototype(registry, lib, "char* echo(char*)")
			_, err := echo.Call(ctx, "a\x00b")
			gomega.Expect(err).To(gomega.MatchError(ErrArgumentType))
		})

		It("uses the configured text encoding", func() {
			latin1 := NewRegistry(NewConfig().WithTextEncoding(charmap.ISO8859_1))
			lib.symbols["length"] = func(args []any) any {
				return int32(len(args[0].([]byte)))
			}

			length := MustPrototype(latin1, lib, "int length(char*)")
			res, err := length.Call(ctx, "héllo")
			gomega.Expect(err).To(gomega.BeNil())
			gomega.Expect(res).To(gomega.Equal(int32(5)))

			echo := MustPrototype(latin1, lib, "char* echo(char*)")
			res, err = echo.Call(ctx, "héllo")
			gomega.Expect(err).To(gomega.BeNil())
			gomega.Expect(res).To(gomega.Equal("héllo"))

			_, err = echo.Call(ctx, "日本")
			gomega.Expect(err).To(gomega.MatchError(ErrArgumentType))
		})
	})

	Context("bound prototypes", func() {
		It("passes the owner as the first argument", func() {
			add := MustPrototype(registry, lib, "int add(int, int)", Bind())
			res, err := add.Get(int32(40)).Call(ctx, 2)
			gomega.Expect(err).To(gomega.BeNil())
			gomega.Expect(res).To(gomega.Equal(int32(42)))

			res, err = add.CallMethod(ctx, 1, 2)
			gomega.Expect(err).To(gomega.BeNil())
			gomega.Expect(res).To(gomega.Equal(int32(3)))
		})
	})

	It("uses the default registry when none is given", func() {
		p, err := NewPrototype(nil, lib, "int abs(int)")
		gomega.Expect(err).To(gomega.BeNil())
		res, err := p.Call(ctx, -7)
		gomega.Expect(err).To(gomega.BeNil())
		gomega.Expect(res).To(gomega.Equal(int32(7)))
	})
})
