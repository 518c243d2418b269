package cwrap_test

import (
	"github.com/jerbob92/go-cwrap"
	"github.com/tetratelabs/wazero"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type wasmObject struct {
	cwrap.CClass
	cwrap.FactoryConstructible
}

var _ = Describe("WasmLibrary", func() {
	var registry *cwrap.Registry

	BeforeEach(func() {
		registry = cwrap.NewRegistry(cwrap.NewConfig().WithFinalizers(false))
	})

	freeCount := func() int32 {
		res, err := cwrap.MustPrototype(registry, lib, "int free_count()").Call(ctx)
		Expect(err).To(BeNil())
		return res.(int32)
	}

	It("is named after the module", func() {
		Expect(lib.Name()).To(Equal("fixture"))
		Expect(lib.Module()).To(BeIdenticalTo(mod))
	})

	It("calls exported functions", func() {
		add := cwrap.MustPrototype(registry, lib, "int add(int, int)")
		res, err := add.Call(ctx, 2, 3)
		Expect(err).To(BeNil())
		Expect(res).To(Equal(int32(5)))

		abs := cwrap.MustPrototype(registry, lib, "int abs(int)")
		res, err = abs.Call(ctx, -12)
		Expect(err).To(BeNil())
		Expect(res).To(Equal(int32(12)))
	})

	It("passes doubles", func() {
		scale := cwrap.MustPrototype(registry, lib, "double scale(double, double)")
		res, err := scale.Call(ctx, 2.5, 3)
		Expect(err).To(BeNil())
		Expect(res).To(Equal(7.5))
	})

	It("copies string arguments into guest memory and frees them", func() {
		before := freeCount()

		strlen := cwrap.MustPrototype(registry, lib, "size_t strlen(char*)")
		res, err := strlen.Call(ctx, "hello world")
		Expect(err).To(BeNil())
		Expect(res).To(Equal(uint64(11)))

		res, err = strlen.Call(ctx, "")
		Expect(err).To(BeNil())
		Expect(res).To(Equal(uint64(0)))

		Expect(freeCount()).To(Equal(before + 2))
	})

	It("reads string results from guest memory", func() {
		greeting := cwrap.MustPrototype(registry, lib, "char* greeting()")
		res, err := greeting.Call(ctx)
		Expect(err).To(BeNil())
		Expect(res).To(Equal("hello"))

		noString := cwrap.MustPrototype(registry, lib, "char* no_string()")
		res, err = noString.Call(ctx)
		Expect(err).To(BeNil())
		Expect(res).To(BeNil())
	})

	It("fails to resolve symbols the module does not export", func() {
		missing := cwrap.MustPrototype(registry, lib, "int missing(int)")
		state, err := missing.Resolve()
		Expect(state).To(Equal(cwrap.StateFailed))
		Expect(err).To(MatchError(cwrap.ErrSymbolNotFound))
		Expect(err.Error()).To(ContainSubstring("fixture"))
	})

	It("fails to resolve declarations that do not match the export", func() {
		add := cwrap.MustPrototype(registry, lib, "int add(int)")
		state, err := add.Resolve()
		Expect(state).To(Equal(cwrap.StateFailed))
		Expect(err).To(HaveOccurred())

		scale := cwrap.MustPrototype(registry, lib, "int scale(double, double)")
		_, err = scale.Resolve()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("result of scale is f64, expected i32"))

		wrongParam := cwrap.MustPrototype(registry, lib, "int add(double, int)")
		_, err = wrongParam.Resolve()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("parameter 0 of add is i32, expected f64"))
	})

	Context("a module without an allocator", func() {
		var readOnly *cwrap.WasmLibrary

		BeforeEach(func() {
			compiledModule, err := runtime.CompileModule(ctx, readOnlyModule())
			Expect(err).To(BeNil())
			instance, err := runtime.InstantiateModule(ctx, compiledModule, wazero.NewModuleConfig().WithName(""))
			Expect(err).To(BeNil())
			DeferCleanup(instance.Close, ctx)
			readOnly = cwrap.NewWasmLibrary(instance)
		})

		It("still returns strings", func() {
			greeting := cwrap.MustPrototype(registry, readOnly, "char* greeting()")
			res, err := greeting.Call(ctx)
			Expect(err).To(BeNil())
			Expect(res).To(Equal("hi"))
		})

		It("can not take string arguments", func() {
			firstChar := cwrap.MustPrototype(registry, readOnly, "int first_char(char*)")
			state, err := firstChar.Resolve()
			Expect(state).To(Equal(cwrap.StateFailed))
			Expect(err.Error()).To(ContainSubstring(`export the "malloc" function`))

			raw := cwrap.MustPrototype(registry, readOnly, "int first_char(void*)")
			res, err := raw.Call(ctx, uintptr(16))
			Expect(err).To(BeNil())
			Expect(res).To(Equal(int32('h')))
		})
	})

	It("refuses pointers to Go memory", func() {
		strlen := cwrap.MustPrototype(registry, lib, "size_t strlen(void*)")
		value := int32(0)
		_, err := strlen.Call(ctx, &value)
		Expect(err).To(HaveOccurred())

		res, err := strlen.Call(ctx, uintptr(16))
		Expect(err).To(BeNil())
		Expect(res).To(Equal(uint64(5)))
	})

	It("wraps and releases guest objects", func() {
		destructor := cwrap.MustPrototype(registry, lib, "void obj_free(wasm_object)")
		objNew := cwrap.MustPrototype(registry, lib, "wasm_object_obj obj_new()")
		objFreeCount := cwrap.MustPrototype(registry, lib, "int obj_free_count()")

		_, err := registry.RegisterClass(&wasmObject{}, cwrap.WithDestructor(destructor), cwrap.WithOperations(objNew))
		Expect(err).To(BeNil())

		before, err := objFreeCount.Call(ctx)
		Expect(err).To(BeNil())

		res, err := objNew.Call(ctx)
		Expect(err).To(BeNil())
		obj := res.(*wasmObject)
		Expect(obj.IsValid()).To(BeTrue())

		Expect(obj.Release(ctx)).To(Succeed())
		Expect(obj.Release(ctx)).To(Succeed())

		after, err := objFreeCount.Call(ctx)
		Expect(err).To(BeNil())
		Expect(after).To(Equal(before.(int32) + 1))

		_, err = destructor.Call(ctx, obj)
		Expect(err).To(MatchError(cwrap.ErrUseAfterRelease))
	})
})
