// Package scantest holds fixture types for the build-time scanner tests.
package scantest

// Mood classifies an owner's temperament.
type Mood int

const (
	Calm Mood = iota
	Grumpy
)

type Pet struct {
	Name string
	Age  int64
}

func (p *Pet) Rename(name string) { p.Name = name }

func (p *Pet) Birthday() int64 {
	p.Age++
	return p.Age
}

func (p *Pet) Dispose() {}

type Owner struct {
	Name   string `bind:"fullName"`
	Secret string `bind:"-"`
	Mood   Mood
	Pets   []Pet
	Best   *Pet
}

func (o *Owner) AddPet(p Pet) error {
	o.Pets = append(o.Pets, p)
	return nil
}

func (o *Owner) Count() (int64, error) { return int64(len(o.Pets)), nil }

func (o *Owner) Audit() {}

// Feed is deliberately unbindable: channels have no category mapping.
type Feed struct {
	Updates chan int
}

type beacon struct{}

func (b *beacon) Ping() int64 { return 1 }

// Sensor promotes Ping through its embedded field.
type Sensor struct {
	beacon
	ID int64
}
