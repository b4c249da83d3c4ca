package schema

import (
	"errors"
	"testing"
)

func newUserDescriptor() *ClassDescriptor {
	desc := NewClassDescriptor("example.com/app/model", "model", "User")
	desc.Identifier = &FieldMapping{Name: "ID", Type: Builtin("string")}
	desc.Fields = append(desc.Fields, &FieldMapping{Name: "Username", Type: Builtin("string")})
	desc.Relations = append(desc.Relations, &RelationMapping{
		Name: "Groups",
		Kind: RelationReference,
		Type: SliceOf(PointerTo(Named("example.com/app/model", "model", "Group"))),
	})
	return desc
}

func TestRegistry(t *testing.T) {
	t.Run("register and get metadata", func(t *testing.T) {
		registry := NewRegistry()

		if err := registry.Register(newUserDescriptor()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		desc, err := registry.GetClassMetadata("example.com/app/model.User")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if desc.TypeName != "User" {
			t.Errorf("expected User, got %s", desc.TypeName)
		}
		if !registry.HasMetadataFor("example.com/app/model.User") {
			t.Error("metadata should exist")
		}
	})

	t.Run("duplicate registration", func(t *testing.T) {
		registry := NewRegistry()

		if err := registry.Register(newUserDescriptor()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := registry.Register(newUserDescriptor()); err == nil {
			t.Error("expected duplicate registration error")
		}
	})

	t.Run("invalid descriptor is rejected", func(t *testing.T) {
		registry := NewRegistry()

		desc := newUserDescriptor()
		desc.Fields = append(desc.Fields, &FieldMapping{Name: "Groups"})

		if err := registry.Register(desc); err == nil {
			t.Error("expected validation error")
		}
		if registry.Count() != 0 {
			t.Errorf("expected empty registry, got %d", registry.Count())
		}
	})

	t.Run("missing metadata", func(t *testing.T) {
		registry := NewRegistry()

		_, err := registry.GetClassMetadata("model.Missing")
		if !errors.Is(err, ErrClassNotFound) {
			t.Errorf("expected ErrClassNotFound, got %v", err)
		}
		if registry.HasMetadataFor("model.Missing") {
			t.Error("metadata should not exist")
		}
	})

	t.Run("set metadata for another name", func(t *testing.T) {
		registry := NewRegistry()
		desc := newUserDescriptor()
		if err := registry.Register(desc); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		registry.SetMetadataFor("examplecomappmodelUserReferenceProxy", desc.CloneAs("examplecomappmodelUserReferenceProxy"))

		proxyDesc, err := registry.GetClassMetadata("examplecomappmodelUserReferenceProxy")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if proxyDesc.TypeName != "User" || len(proxyDesc.Fields) != 1 {
			t.Errorf("proxy metadata should mirror the source, got %+v", proxyDesc)
		}
		if desc.Name != "example.com/app/model.User" {
			t.Errorf("source descriptor was modified: %s", desc.Name)
		}
	})

	t.Run("list is sorted", func(t *testing.T) {
		registry := NewRegistry()
		for _, name := range []string{"Zeta", "Alpha", "Mid"} {
			if err := registry.Register(NewClassDescriptor("p", "p", name)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		names := registry.List()
		want := []string{"p.Alpha", "p.Mid", "p.Zeta"}
		for i := range want {
			if names[i] != want[i] {
				t.Errorf("expected %v, got %v", want, names)
				break
			}
		}
		all := registry.All()
		if len(all) != 3 || all[0].TypeName != "Alpha" {
			t.Errorf("unexpected All() result: %v", all)
		}

		registry.Clear()
		if registry.Count() != 0 {
			t.Error("expected registry to be empty after Clear")
		}
	})
}
