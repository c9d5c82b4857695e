package jsbind

import (
	"math"
	"testing"

	"github.com/dop251/goja"

	"github.com/chazu/mirrorbind/descriptor"
)

type point struct {
	X float64
	Y float64
}

func (p *point) Distance() float64 { return math.Hypot(p.X, p.Y) }

func (p *point) Translate(dx, dy float64) { p.X += dx; p.Y += dy }

type address struct {
	City   string
	Street string
}

type person struct {
	Name string
	Home address
	Tags []string
}

func (p *person) HomeCopy() address { return p.Home }

type tracker struct {
	Calls int64
}

func (t *tracker) Add(n int64) int64 {
	t.Calls += n
	return t.Calls
}

type signal int

type device struct {
	Level signal
	Label *string
}

type meter struct {
	Ticks uint32
}

type handle struct {
	Open     bool
	disposed int
}

func (h *handle) Dispose() { h.disposed++ }

func newRuntime(t *testing.T) (*goja.Runtime, *descriptor.Registry, *Binder, *goja.Object) {
	t.Helper()
	rt := goja.New()
	reg := descriptor.NewRegistry()
	b := New(rt, reg)
	ns := rt.NewObject()
	if err := rt.Set("M", ns); err != nil {
		t.Fatalf("Set namespace: %v", err)
	}
	return rt, reg, b, ns
}

func mustDescribe(t *testing.T, reg *descriptor.Registry, v any, opts ...descriptor.Option) *descriptor.TypeDescriptor {
	t.Helper()
	d, err := reg.Describe(v, opts...)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	return d
}

func mustRegister(t *testing.T, b *Binder, ns *goja.Object, descs ...*descriptor.TypeDescriptor) {
	t.Helper()
	if err := b.RegisterAll(ns, descs...); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
}

func run(t *testing.T, rt *goja.Runtime, script string) goja.Value {
	t.Helper()
	v, err := rt.RunString(script)
	if err != nil {
		t.Fatalf("js error: %v", err)
	}
	return v
}

// kindOf runs a script expected to throw and returns the error's kind tag.
func kindOf(t *testing.T, rt *goja.Runtime, expr string) string {
	t.Helper()
	v := run(t, rt, `(function() {
		try { `+expr+`; return ""; } catch (e) { return e.kind || String(e); }
	})()`)
	kind := v.String()
	if kind == "" {
		t.Fatalf("expected %s to throw", expr)
	}
	return kind
}

func TestConstructFieldsAndMethodCall(t *testing.T) {
	rt, reg, b, ns := newRuntime(t)
	mustRegister(t, b, ns, mustDescribe(t, reg, point{}, descriptor.WithName("Point")))

	v := run(t, rt, `
		const p = new M.Point();
		p.x = 3;
		p.y = 4;
		p.distance();
	`)
	if v.ToFloat() != 5 {
		t.Errorf("expected distance 5, got %v", v)
	}
}

func TestCustomConstructor(t *testing.T) {
	rt, reg, b, ns := newRuntime(t)
	d := mustDescribe(t, reg, point{}, descriptor.WithName("Point"),
		descriptor.WithConstructor(func(x, y float64) *point {
			return &point{X: x, Y: y}
		}))
	mustRegister(t, b, ns, d)

	v := run(t, rt, `new M.Point(6, 8).distance()`)
	if v.ToFloat() != 10 {
		t.Errorf("expected 10, got %v", v)
	}

	if kind := kindOf(t, rt, `new M.Point(6)`); kind != "ArityMismatchError" {
		t.Errorf("expected ArityMismatchError, got %q", kind)
	}
}

func TestVoidMethodMutatesInstance(t *testing.T) {
	rt, reg, b, ns := newRuntime(t)
	mustRegister(t, b, ns, mustDescribe(t, reg, point{}, descriptor.WithName("Point")))

	v := run(t, rt, `
		const p = new M.Point();
		p.translate(1, 2);
		p.translate(1, 2);
		[p.x, p.y].join(",");
	`)
	if v.String() != "2,4" {
		t.Errorf("translate did not accumulate: %s", v)
	}
}

func TestSequenceRoundTrip(t *testing.T) {
	rt, reg, b, ns := newRuntime(t)
	mustRegister(t, b, ns,
		mustDescribe(t, reg, address{}, descriptor.WithName("Address")),
		mustDescribe(t, reg, person{}, descriptor.WithName("Person")))

	v := run(t, rt, `
		const p = new M.Person();
		p.tags = ["alpha", "beta", "gamma"];
		const seen = p.tags;
		seen.length + ":" + seen[0];
	`)
	if v.String() != "3:alpha" {
		t.Errorf("sequence round trip failed: %s", v)
	}
}

func TestNestedFieldIsLive(t *testing.T) {
	rt, reg, b, ns := newRuntime(t)
	mustRegister(t, b, ns,
		mustDescribe(t, reg, address{}, descriptor.WithName("Address")),
		mustDescribe(t, reg, person{}, descriptor.WithName("Person")))

	native := &person{Home: address{City: "Oslo"}}
	jv, err := b.Borrowed(native)
	if err != nil {
		t.Fatalf("Borrowed: %v", err)
	}
	if err := rt.Set("p", jv); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v := run(t, rt, `
		p.home.city = "Bergen";
		p.home.city;
	`)
	if v.String() != "Bergen" {
		t.Errorf("read back %s", v)
	}
	if native.Home.City != "Bergen" {
		t.Errorf("nested write did not reach the native instance: %q", native.Home.City)
	}

	run(t, rt, `p.home = { city: "Tromso", street: "Storgata 1" };`)
	if native.Home.City != "Tromso" || native.Home.Street != "Storgata 1" {
		t.Errorf("record assignment failed: %+v", native.Home)
	}
}

func TestMethodReturnIsCopy(t *testing.T) {
	rt, reg, b, ns := newRuntime(t)
	mustRegister(t, b, ns,
		mustDescribe(t, reg, address{}, descriptor.WithName("Address")),
		mustDescribe(t, reg, person{}, descriptor.WithName("Person")))

	native := &person{Home: address{City: "Oslo"}}
	jv, err := b.Borrowed(native)
	if err != nil {
		t.Fatalf("Borrowed: %v", err)
	}
	if err := rt.Set("p", jv); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v := run(t, rt, `
		const copy = p.homeCopy();
		copy.city = "Bergen";
		copy.city;
	`)
	if v.String() != "Bergen" {
		t.Errorf("copy mutation lost: %s", v)
	}
	if native.Home.City != "Oslo" {
		t.Errorf("mutating the copy reached the original: %q", native.Home.City)
	}
}

func TestUnregisteredNestedFallsBackToObject(t *testing.T) {
	rt, reg, b, ns := newRuntime(t)
	mustRegister(t, b, ns, mustDescribe(t, reg, person{}, descriptor.WithName("Person")))

	native := &person{Home: address{City: "Oslo"}}
	jv, err := b.Borrowed(native)
	if err != nil {
		t.Fatalf("Borrowed: %v", err)
	}
	if err := rt.Set("p", jv); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v := run(t, rt, `
		const home = p.home;
		home.city = "Bergen";
		typeof home.dispose;
	`)
	// A plain object carries no lifetime hook.
	if v.String() != "undefined" {
		t.Error("unregistered nested value must be a plain object")
	}
	if native.Home.City != "Oslo" {
		t.Error("object fallback must not alias native storage")
	}
}

func TestArityMismatchHasNoSideEffects(t *testing.T) {
	rt, reg, b, ns := newRuntime(t)
	mustRegister(t, b, ns, mustDescribe(t, reg, tracker{}, descriptor.WithName("Tracker")))

	native := &tracker{}
	jv, err := b.Borrowed(native)
	if err != nil {
		t.Fatalf("Borrowed: %v", err)
	}
	if err := rt.Set("tr", jv); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if kind := kindOf(t, rt, `tr.add(1, 2)`); kind != "ArityMismatchError" {
		t.Errorf("expected ArityMismatchError, got %q", kind)
	}
	if native.Calls != 0 {
		t.Errorf("failed call mutated the instance: Calls=%d", native.Calls)
	}
}

func TestConversionErrors(t *testing.T) {
	rt, reg, b, ns := newRuntime(t)
	mustRegister(t, b, ns, mustDescribe(t, reg, tracker{}, descriptor.WithName("Tracker")))
	run(t, rt, `tr = new M.Tracker()`)

	if kind := kindOf(t, rt, `tr.add("nope")`); kind != "ArgumentConversionError" {
		t.Errorf("expected ArgumentConversionError for a string, got %q", kind)
	}
	if kind := kindOf(t, rt, `tr.add(1.5)`); kind != "ArgumentConversionError" {
		t.Errorf("expected ArgumentConversionError for 1.5, got %q", kind)
	}
	if v := run(t, rt, `tr.add(2)`); v.ToInteger() != 2 {
		t.Errorf("add(2) = %v", v)
	}
}

// Integer writes reject values the native width cannot hold instead of
// wrapping or truncating them.
func TestIntegerRangeChecks(t *testing.T) {
	rt, reg, b, ns := newRuntime(t)
	mustRegister(t, b, ns, mustDescribe(t, reg, meter{}, descriptor.WithName("Meter")))
	run(t, rt, `m = new M.Meter()`)

	for _, expr := range []string{
		`m.ticks = -1`,
		`m.ticks = 4294967296`,
		`m.ticks = Infinity`,
		`m.ticks = NaN`,
	} {
		if kind := kindOf(t, rt, expr); kind != "ArgumentConversionError" {
			t.Errorf("%s: expected ArgumentConversionError, got %q", expr, kind)
		}
	}

	if v := run(t, rt, `m.ticks = 4294967295; m.ticks`); v.ToInteger() != 4294967295 {
		t.Errorf("max uint32 must round trip, got %v", v)
	}
}

func TestDisposeInvalidatesInstance(t *testing.T) {
	rt, reg, b, ns := newRuntime(t)
	mustRegister(t, b, ns, mustDescribe(t, reg, point{}, descriptor.WithName("Point")))

	run(t, rt, `
		p = new M.Point();
		p.x = 1;
		p.dispose();
	`)
	if kind := kindOf(t, rt, `p.x`); kind != "InvalidObjectError" {
		t.Errorf("expected InvalidObjectError on read, got %q", kind)
	}
	if kind := kindOf(t, rt, `p.dispose()`); kind != "InvalidObjectError" {
		t.Errorf("expected InvalidObjectError on second dispose, got %q", kind)
	}
}

func TestOwnershipControlsDisposal(t *testing.T) {
	rt, reg, b, ns := newRuntime(t)
	mustRegister(t, b, ns, mustDescribe(t, reg, handle{}, descriptor.WithName("Handle")))

	owned := &handle{}
	jv, err := b.Owned(owned)
	if err != nil {
		t.Fatalf("Owned: %v", err)
	}
	if err := rt.Set("h", jv); err != nil {
		t.Fatalf("Set: %v", err)
	}
	run(t, rt, `h.dispose()`)
	if owned.disposed != 1 {
		t.Errorf("owned handle disposed %d times", owned.disposed)
	}

	borrowed := &handle{}
	jv, err = b.Borrowed(borrowed)
	if err != nil {
		t.Fatalf("Borrowed: %v", err)
	}
	if err := rt.Set("g", jv); err != nil {
		t.Fatalf("Set: %v", err)
	}
	run(t, rt, `g.dispose()`)
	if borrowed.disposed != 0 {
		t.Error("borrowed handle must never be disposed")
	}
}

func TestEnumAndOptional(t *testing.T) {
	rt, reg, b, ns := newRuntime(t)
	mustRegister(t, b, ns, mustDescribe(t, reg, device{}, descriptor.WithName("Device")))

	native := &device{Level: 2}
	jv, err := b.Borrowed(native)
	if err != nil {
		t.Fatalf("Borrowed: %v", err)
	}
	if err := rt.Set("d", jv); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v := run(t, rt, `
		const before = d.level;
		d.level = 5;
		const wasNull = d.label === null;
		d.label = "badge";
		const label = d.label;
		d.label = null;
		before + ":" + wasNull + ":" + label;
	`)
	if v.String() != "2:true:badge" {
		t.Errorf("enum/optional travel failed: %s", v)
	}
	if native.Level != 5 {
		t.Errorf("enum write lost: %d", native.Level)
	}
	if native.Label != nil {
		t.Error("assigning null must clear the optional")
	}
}

// Integers round-trip exactly past the float64 mantissa because goja keeps
// integral numbers as int64.
func TestInt64Exactness(t *testing.T) {
	rt, reg, b, ns := newRuntime(t)
	mustRegister(t, b, ns, mustDescribe(t, reg, tracker{}, descriptor.WithName("Tracker")))

	const big = int64(1)<<60 + 1
	native := &tracker{Calls: big}
	jv, err := b.Borrowed(native)
	if err != nil {
		t.Fatalf("Borrowed: %v", err)
	}
	if err := rt.Set("tr", jv); err != nil {
		t.Fatalf("Set: %v", err)
	}

	run(t, rt, `tr.calls = tr.calls;`)
	if native.Calls != big {
		t.Errorf("int64 round trip lost precision: %d", native.Calls)
	}
}

func TestStaticsAndConsts(t *testing.T) {
	rt, reg, b, ns := newRuntime(t)
	d := mustDescribe(t, reg, point{}, descriptor.WithName("Point"),
		descriptor.WithStatic("dot", func(ax, ay, bx, by float64) float64 {
			return ax*bx + ay*by
		}),
		descriptor.WithConst("dims", int64(2)))
	mustRegister(t, b, ns, d)

	if v := run(t, rt, `M.Point.dot(1, 2, 3, 4)`); v.ToFloat() != 11 {
		t.Errorf("dot = %v", v)
	}
	if v := run(t, rt, `M.Point.dims`); v.ToInteger() != 2 {
		t.Errorf("dims = %v", v)
	}
}

// Behavior lives on one shared prototype per class, so instances compare
// method identity and satisfy instanceof.
func TestPrototypeShared(t *testing.T) {
	rt, reg, b, ns := newRuntime(t)
	mustRegister(t, b, ns, mustDescribe(t, reg, point{}, descriptor.WithName("Point")))

	v := run(t, rt, `
		const a = new M.Point();
		const b = new M.Point();
		[a.distance === b.distance, a instanceof M.Point,
			Object.getPrototypeOf(a) === M.Point.prototype].join(",");
	`)
	if v.String() != "true,true,true" {
		t.Errorf("prototype wiring broken: %s", v)
	}
}

// Detached methods and foreign receivers resolve no wrapper.
func TestPrototypeRejectsForeignReceiver(t *testing.T) {
	rt, reg, b, ns := newRuntime(t)
	mustRegister(t, b, ns,
		mustDescribe(t, reg, point{}, descriptor.WithName("Point")),
		mustDescribe(t, reg, tracker{}, descriptor.WithName("Tracker")))

	if kind := kindOf(t, rt, `M.Point.prototype.distance.call({})`); kind != "InvalidObjectError" {
		t.Errorf("plain receiver: expected InvalidObjectError, got %q", kind)
	}
	if kind := kindOf(t, rt, `M.Point.prototype.distance.call(new M.Tracker())`); kind != "InvalidObjectError" {
		t.Errorf("foreign receiver: expected InvalidObjectError, got %q", kind)
	}
}

func TestDuplicateRegistrationFails(t *testing.T) {
	_, reg, b, ns := newRuntime(t)
	d := mustDescribe(t, reg, point{}, descriptor.WithName("Point"))
	if err := b.Register(d, ns); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := b.Register(d, ns); err == nil {
		t.Error("second Register of the same class must fail")
	}
}

func BenchmarkFieldAccess(b *testing.B) {
	rt := goja.New()
	reg := descriptor.NewRegistry()
	binder := New(rt, reg)
	ns := rt.NewObject()
	if err := rt.Set("M", ns); err != nil {
		b.Fatal(err)
	}
	d, err := reg.Describe(point{}, descriptor.WithName("Point"))
	if err != nil {
		b.Fatal(err)
	}
	if err := binder.Register(d, ns); err != nil {
		b.Fatal(err)
	}
	if _, err := rt.RunString(`p = new M.Point();`); err != nil {
		b.Fatal(err)
	}
	prog, err := goja.Compile("bench", `p.x = p.x + 1`, false)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := rt.RunProgram(prog); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMethodDispatch(b *testing.B) {
	rt := goja.New()
	reg := descriptor.NewRegistry()
	binder := New(rt, reg)
	ns := rt.NewObject()
	if err := rt.Set("M", ns); err != nil {
		b.Fatal(err)
	}
	d, err := reg.Describe(point{}, descriptor.WithName("Point"))
	if err != nil {
		b.Fatal(err)
	}
	if err := binder.Register(d, ns); err != nil {
		b.Fatal(err)
	}
	if _, err := rt.RunString(`p = new M.Point(); p.x = 3; p.y = 4;`); err != nil {
		b.Fatal(err)
	}
	prog, err := goja.Compile("bench", `p.distance()`, false)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := rt.RunProgram(prog); err != nil {
			b.Fatal(err)
		}
	}
}
