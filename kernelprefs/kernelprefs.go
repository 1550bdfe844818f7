// Package kernelprefs holds the boot-time tunables spec.md treats as fixed
// constants but which a hosted emulation makes configurable, so that tests
// can run a faster PIT without touching the packages that implement §3/§4.
// ProcessSlots is recorded and clamped, but the process table itself is
// always six slots; no package reads ProcessSlots.
package kernelprefs

// Defaults match spec.md exactly: 100 Hz PIT, six process slots, an 80x25
// text-mode screen and a 2 Hz default RTC rate.
const (
	DefaultPITHz        = 100
	DefaultProcessSlots = 6
	MaxProcessSlots     = 6
	DefaultRTCHz        = 2
	ScreenColumns       = 80
	ScreenRows          = 25
	NumTerminals        = 3
)

// Prefs is the live, possibly-overridden set of boot tunables.
type Prefs struct {
	PITHz        int
	ProcessSlots int
	ImagePath    string
}

// NewPrefs is the preferred method of initialisation for the Prefs type.
func NewPrefs() *Prefs {
	p := &Prefs{}
	p.SetDefaults()
	return p
}

// SetDefaults resets every field to the spec.md default. Useful for tests
// that need a known-good starting state regardless of what a previous test
// left behind.
func (p *Prefs) SetDefaults() {
	p.PITHz = DefaultPITHz
	p.ProcessSlots = DefaultProcessSlots
	p.ImagePath = ""
}

// Normalise clamps ProcessSlots to the hard architectural ceiling; the
// process table (§3) is a fixed six-entry array regardless of what a
// misconfigured Prefs asks for.
func (p *Prefs) Normalise() {
	if p.ProcessSlots > MaxProcessSlots || p.ProcessSlots < 1 {
		p.ProcessSlots = MaxProcessSlots
	}
}
