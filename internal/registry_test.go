package cwrap

import (
	. "github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

var builtinKeys = []string{
	"void", "void*", "uint", "uint*", "int", "int*", "int64", "int64*",
	"size_t", "size_t*", "bool", "bool*", "long", "long*", "char", "char*",
	"char**", "float", "float*", "double", "double*", "py_object",
}

var _ = Describe("Registry", func() {
	var registry *Registry

	BeforeEach(func() {
		registry = NewRegistry(NewConfig())
	})

	Context("built-in types", func() {
		It("registers every built-in key exactly once", func() {
			gomega.Expect(registry.Types()).To(gomega.ConsistOf(builtinKeys))
		})

		It("looks up every built-in key as a return type", func() {
			for _, key := range builtinKeys {
				desc, err := registry.Lookup(key)
				gomega.Expect(err).To(gomega.BeNil())
				gomega.Expect(desc.Name).To(gomega.Equal(key))
				gomega.Expect(desc.IsReturnType).To(gomega.BeTrue())
			}
		})

		It("rejects registering a built-in key a second time", func() {
			for _, key := range builtinKeys {
				desc, err := registry.Lookup(key)
				gomega.Expect(err).To(gomega.BeNil())

				err = registry.Register(&TypeDescriptor{Name: key, Type: desc.Type})
				gomega.Expect(err).To(gomega.MatchError(ErrDuplicateKey))
				gomega.Expect(err.Error()).To(gomega.ContainSubstring("cannot register type '" + key + "' twice"))
			}
		})

		It("maps the built-ins to their native kinds", func() {
			kinds := map[string]NativeKind{
				"void":      KindVoid,
				"int":       KindInt32,
				"uint":      KindUint32,
				"long":      KindLong,
				"size_t":    KindSizeT,
				"char":      KindChar,
				"char*":     KindCString,
				"double":    KindFloat64,
				"float":     KindFloat32,
				"int*":      KindPointer,
				"py_object": KindPointer,
			}
			for key, kind := range kinds {
				desc, err := registry.Lookup(key)
				gomega.Expect(err).To(gomega.BeNil())
				gomega.Expect(desc.returnKind()).To(gomega.Equal(kind), key)
			}
		})
	})

	When("a type is not registered", func() {
		It("fails the lookup with an unknown type error", func() {
			_, err := registry.Lookup("struct_tm")
			gomega.Expect(err).To(gomega.MatchError(ErrUnknownType))
			gomega.Expect(registry.Has("struct_tm")).To(gomega.BeFalse())
		})
	})

	It("registers custom types", func() {
		err := registry.Register(&TypeDescriptor{
			Name:         "handle_t",
			Type:         &pointerType{baseType: baseType{name: "handle_t", kind: KindPointer}, elem: KindVoid},
			IsReturnType: true,
		})
		gomega.Expect(err).To(gomega.BeNil())
		gomega.Expect(registry.Has("handle_t")).To(gomega.BeTrue())
	})

	It("rejects descriptors without a marshal type", func() {
		err := registry.Register(&TypeDescriptor{Name: "broken"})
		gomega.Expect(err).To(gomega.HaveOccurred())
	})

	It("keeps separate registries separate", func() {
		other := NewRegistry(nil)
		_, err := registry.RegisterEnum("color", map[string]int64{"RED": 0})
		gomega.Expect(err).To(gomega.BeNil())
		gomega.Expect(other.Has("color")).To(gomega.BeFalse())
	})

	It("returns one default registry per process", func() {
		gomega.Expect(Default()).To(gomega.BeIdenticalTo(Default()))
	})
})
