// Command smoke drives one donation through to an approved request and
// checks that stock is conserved. It runs against PostgreSQL when
// BLOODNET_PG_DSN is set and in memory otherwise.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"bloodnet.org/internal/auth"
	"bloodnet.org/internal/bank"
	"bloodnet.org/internal/blood"
	"bloodnet.org/internal/inventory"
	"bloodnet.org/internal/store/mem"
	"bloodnet.org/internal/store/pg"
)

func main() {
	var store bank.Store = mem.New()
	if dsn := os.Getenv("BLOODNET_PG_DSN"); dsn != "" {
		s, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer s.Close()
		store = s
	}
	eng := bank.New(store)
	admin := auth.Admin()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	must := func(what string, err error) {
		if err != nil {
			log.Fatalf("%s: %v", what, err)
		}
	}

	d, err := eng.CreateDonor(ctx, bank.NewDonor{Name: "Smoke Donor", BloodGroup: blood.ONeg, Age: 30})
	must("create donor", err)
	hc, err := eng.SubmitHealthCheck(ctx, auth.Donor(d.ID), bank.HealthCheckInput{
		DonorID: d.ID, WeightKG: 70, HemoglobinGDL: 14, Systolic: 120, Diastolic: 80, PulseBPM: 70, TemperatureC: 36.6,
	})
	must("submit health check", err)
	_, err = eng.ApproveHealthCheck(ctx, admin, hc.ID)
	must("approve health check", err)

	h, err := eng.CreateHospital(ctx, admin, bank.NewHospital{Name: "Smoke General"})
	must("create hospital", err)
	before, err := eng.ReadStock(ctx, admin, inventory.Central, blood.ONeg)
	must("read central", err)

	_, err = eng.RecordWalkInDonation(ctx, admin, d.ID, bank.DonationInput{Units: 3})
	must("walk-in donation", err)
	_, _, err = eng.TransferStock(ctx, admin, inventory.Central, inventory.HospitalPool(h.ID), blood.ONeg, 3)
	must("transfer", err)

	p, err := eng.CreatePatient(ctx, bank.NewPatient{Name: "Smoke Patient", BloodGroup: blood.ONeg, RequiredUnits: 1})
	must("create patient", err)

	const requests = 5
	ids := make([]string, requests)
	for i := range ids {
		r, err := eng.CreateRequest(ctx, auth.Patient(p.ID), bank.RequestInput{PatientID: p.ID, HospitalID: h.ID})
		must("create request", err)
		ids[i] = r.ID
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		approved int
		short    int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := eng.ApproveRequest(ctx, auth.Hospital(h.ID), id)
			mu.Lock()
			defer mu.Unlock()
			switch bank.Code(err) {
			case "":
				approved++
			case "insufficient_stock":
				short++
			default:
				log.Fatalf("approve %s: %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	left, err := eng.ReadStock(ctx, admin, inventory.HospitalPool(h.ID), blood.ONeg)
	must("read hospital", err)
	after, err := eng.ReadStock(ctx, admin, inventory.Central, blood.ONeg)
	must("read central", err)

	if approved != 3 || short != requests-3 {
		log.Fatalf("expected 3 approvals, got %d (short %d)", approved, short)
	}
	if left != 0 || after != before {
		log.Fatalf("stock not conserved: hospital=%d central=%d (was %d)", left, after, before)
	}
	fmt.Printf("smoke passed: donor=%s hospital=%s approved=%d\n", d.ID, h.ID, approved)
}
