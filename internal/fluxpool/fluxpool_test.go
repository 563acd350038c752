package fluxpool_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bje-/hector/internal/fluxpool"
	"github.com/bje-/hector/internal/unitval"
)

func pgc(v float64) unitval.Unitval { return unitval.New(v, unitval.PgC) }

var _ = Describe("Pool", func() {
	var atmos, earth *fluxpool.Pool

	BeforeEach(func() {
		atmos = fluxpool.New("atmos_c", pgc(100), true)
		earth = fluxpool.New("earth_c", pgc(50), true)
	})

	Describe("tracking initialization", func() {
		It("attributes the initial contents entirely to the pool itself", func() {
			Expect(atmos.Sources()).To(Equal([]string{"atmos_c"}))
			Expect(atmos.Fraction("atmos_c")).To(Equal(1.0))
		})

		It("reports zero for an absent source", func() {
			Expect(atmos.Fraction("nowhere")).To(BeZero())
		})
	})

	Describe("transfers", func() {
		It("yields a 50/50 mix when equal shares meet", func() {
			// 100 Pg C of pure "atmos_c" into 50 Pg C of pure "earth_c",
			// moving 50: earth ends at 100 with half from each.
			Expect(atmos.Transfer(earth, pgc(50))).To(Succeed())

			Expect(earth.Magnitude().Magnitude()).To(BeNumerically("~", 100, 1e-10))
			Expect(earth.Fraction("atmos_c")).To(BeNumerically("~", 0.5, 1e-10))
			Expect(earth.Fraction("earth_c")).To(BeNumerically("~", 0.5, 1e-10))
		})

		It("conserves total mass across a transfer", func() {
			before := atmos.Magnitude().Magnitude() + earth.Magnitude().Magnitude()
			Expect(atmos.Transfer(earth, pgc(37.25))).To(Succeed())
			after := atmos.Magnitude().Magnitude() + earth.Magnitude().Magnitude()
			Expect(after).To(BeNumerically("~", before, 1e-10))
		})

		It("leaves the withdrawing pool's mix unchanged", func() {
			Expect(earth.Transfer(atmos, pgc(25))).To(Succeed())
			_, err := atmos.Subtract(pgc(60))
			Expect(err).NotTo(HaveOccurred())
			Expect(atmos.Fraction("earth_c")).To(BeNumerically("~", 0.2, 1e-10))
			Expect(atmos.Fraction("atmos_c")).To(BeNumerically("~", 0.8, 1e-10))
		})

		It("keeps fractions summing to 1 through a long transfer chain", func() {
			soil := fluxpool.New("soil_c", pgc(200), true)
			for i := 0; i < 25; i++ {
				Expect(atmos.Transfer(earth, pgc(2))).To(Succeed())
				Expect(earth.Transfer(soil, pgc(3))).To(Succeed())
				Expect(soil.Transfer(atmos, pgc(2.5))).To(Succeed())
			}
			for _, p := range []*fluxpool.Pool{atmos, earth, soil} {
				Expect(p.FractionSum()).To(BeNumerically("~", 1.0, 1e-9))
			}
		})
	})

	Describe("withdrawal limits", func() {
		It("fails with ErrNegativePool rather than clamping", func() {
			_, err := earth.Subtract(pgc(50.1))
			Expect(err).To(MatchError(fluxpool.ErrNegativePool))
			// pool untouched by the failed withdrawal
			Expect(earth.Magnitude().Magnitude()).To(Equal(50.0))
		})

		It("allows withdrawing the exact contents", func() {
			f, err := earth.Subtract(pgc(50))
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Amount().Magnitude()).To(Equal(50.0))
			Expect(earth.Magnitude().Magnitude()).To(BeZero())
		})
	})

	Describe("unit safety", func() {
		It("rejects an inflow with an incompatible unit", func() {
			err := atmos.Add(fluxpool.UntrackedFlux(unitval.New(1, unitval.DegC)))
			Expect(err).To(MatchError(unitval.ErrUnitMismatch))
		})

		It("accepts an inflow in a convertible unit", func() {
			err := atmos.Add(fluxpool.UntrackedFlux(unitval.New(1000, unitval.TgC)))
			Expect(err).NotTo(HaveOccurred())
			Expect(atmos.Magnitude().Magnitude()).To(BeNumerically("~", 101, 1e-10))
		})
	})

	Describe("tracking toggles", func() {
		It("discards the fraction map when disabled", func() {
			Expect(atmos.Transfer(earth, pgc(10))).To(Succeed())
			earth.DisableTracking()
			Expect(earth.Tracking()).To(BeFalse())
			Expect(earth.Sources()).To(BeEmpty())
		})

		It("re-enabling resets to full self-attribution", func() {
			earth.DisableTracking()
			earth.EnableTracking()
			Expect(earth.Sources()).To(Equal([]string{"earth_c"}))
			Expect(earth.Fraction("earth_c")).To(Equal(1.0))
		})

		It("maintains magnitude only when not tracking", func() {
			plain := fluxpool.New("ocean_c", pgc(1000), false)
			Expect(plain.Add(fluxpool.UntrackedFlux(pgc(5)))).To(Succeed())
			Expect(plain.Magnitude().Magnitude()).To(Equal(1005.0))
			Expect(plain.Sources()).To(BeEmpty())
		})
	})

	Describe("flux independence", func() {
		It("copies fractions out so pools never alias bookkeeping", func() {
			f, err := atmos.Subtract(pgc(10))
			Expect(err).NotTo(HaveOccurred())
			Expect(earth.Add(f)).To(Succeed())

			// mutating atmos afterwards must not affect earth's mix
			Expect(earth.Transfer(atmos, pgc(40))).To(Succeed())
			Expect(earth.FractionSum()).To(BeNumerically("~", 1.0, 1e-10))
		})
	})

	Describe("clone", func() {
		It("produces an independent snapshot", func() {
			snap := earth.Clone()
			Expect(earth.Transfer(atmos, pgc(20))).To(Succeed())
			Expect(snap.Magnitude().Magnitude()).To(Equal(50.0))
			Expect(snap.Fraction("earth_c")).To(Equal(1.0))
		})
	})
})
