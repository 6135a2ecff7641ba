package filter

import "testing"

func TestServiceFilter(t *testing.T) {
	tests := []struct {
		name    string
		include []string
		exclude []string
		service string
		want    bool
	}{
		{name: "no patterns keeps all", service: "helloworld.Greeter", want: false},
		{name: "include match", include: []string{"helloworld.*"}, service: "helloworld.Greeter", want: false},
		{name: "include miss", include: []string{"helloworld.*"}, service: "grpc.health.v1.Health", want: true},
		{name: "exclude match", exclude: []string{"grpc.reflection.*"}, service: "grpc.reflection.v1.ServerReflection", want: true},
		{name: "exclude miss", exclude: []string{"grpc.reflection.*"}, service: "helloworld.Greeter", want: false},
		{name: "exclude wins over include", include: []string{"*"}, exclude: []string{"*.Health"}, service: "grpc.health.v1.Health", want: true},
		{name: "suffix glob", include: []string{"*.Greeter"}, service: "helloworld.Greeter", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewServiceFilter(tt.include, tt.exclude)
			if err != nil {
				t.Fatal(err)
			}
			if got := f.ShouldFilter(tt.service); got != tt.want {
				t.Errorf("ShouldFilter(%q) = %v, want %v", tt.service, got, tt.want)
			}
		})
	}
}

func TestServiceFilter_BadPattern(t *testing.T) {
	if _, err := NewServiceFilter([]string{"[unclosed"}, nil); err == nil {
		t.Error("expected error for malformed pattern")
	}
}

func TestChain_Keep(t *testing.T) {
	f, _ := NewServiceFilter(nil, []string{"grpc.reflection.*"})
	chain := NewChain()
	chain.Add(f)

	in := []string{"grpc.reflection.v1.ServerReflection", "helloworld.Greeter", "grpc.reflection.v1alpha.ServerReflection"}
	got := chain.Keep(in)
	if len(got) != 1 || got[0] != "helloworld.Greeter" {
		t.Errorf("Keep = %v", got)
	}
	if len(in) != 3 {
		t.Error("Keep modified its input")
	}

	drop, name := chain.Apply("grpc.reflection.v1.ServerReflection")
	if !drop || name != "service" {
		t.Errorf("Apply = %v, %q", drop, name)
	}
}

func TestChain_NilAndEmpty(t *testing.T) {
	var nilChain *Chain
	if got := nilChain.Keep([]string{"a"}); len(got) != 1 {
		t.Errorf("nil chain Keep = %v", got)
	}
	if NewChain().Len() != 0 || nilChain.Len() != 0 {
		t.Error("expected empty chains")
	}
	if got := NewChain().Keep(nil); got == nil || len(got) != 0 {
		t.Errorf("Keep(nil) = %#v, want empty non-nil", got)
	}
}

func TestDuplicateTracker(t *testing.T) {
	d := NewDuplicateTracker()
	if d.Name() != "duplicate" {
		t.Errorf("Name() = %q", d.Name())
	}
	if !d.First("localhost:50051", []string{"a", "b"}) {
		t.Error("first sighting should be new")
	}
	if d.First("localhost:50051", []string{"a", "b"}) {
		t.Error("repeat sighting should not be new")
	}
	if !d.First("localhost:50051", []string{"a"}) {
		t.Error("changed service set should be new")
	}
	if !d.First("localhost:50052", []string{"a"}) {
		t.Error("other endpoint should be new")
	}
	if d.Count() != 2 {
		t.Errorf("Count() = %d, want 2", d.Count())
	}
}
