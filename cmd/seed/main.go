package main

import (
	"context"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/televita-health/scheduling/internal/db"
)

const (
	providerCount = 25
	patientCount  = 2000
	gridDays      = 30
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	providers, err := seedProviders(context.Background(), pool, providerCount)
	if err != nil {
		log.Fatalf("seed providers: %v", err)
	}
	patients, err := seedPatients(context.Background(), pool, patientCount)
	if err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedAppointmentGrids(context.Background(), pool, providers, patients); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

func seedProviders(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d providers", count)

	specialties := []string{
		"Registered Dietitian",
		"Nutritionist",
		"Diabetes Education",
		"Endocrinology",
		"Bariatric Counseling",
		"Pediatric Nutrition",
		"Renal Nutrition",
		"Sports Nutrition",
	}
	timezones := []string{
		"America/New_York",
		"America/Chicago",
		"America/Denver",
		"America/Los_Angeles",
	}

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		specialty := specialties[rand.Intn(len(specialties))]
		tz := timezones[rand.Intn(len(timezones))]

		_, err := pool.Exec(ctx, `
			INSERT INTO providers (id, name, specialty, timezone, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, true, now(), now())
		`, id, gofakeit.Name(), specialty, tz)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) ([]int64, error) {
	log.Printf("seeding %d patients", count)

	ids := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		var id int64
		err := pool.QueryRow(ctx, `
			INSERT INTO patients (name, email, created_at, updated_at)
			VALUES ($1, $2, now(), now())
			RETURNING id
		`, gofakeit.Name(), gofakeit.Email()).Scan(&id)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// seedAppointmentGrids fills each provider's next gridDays business days
// with half-hour rows: mostly open, a share booked, plus a few deliberate
// conflicts and overbooking exceptions so the classifier has something
// interesting to chew on.
func seedAppointmentGrids(ctx context.Context, pool *pgxpool.Pool, providers []uuid.UUID, patients []int64) error {
	log.Printf("seeding appointment grids for %d providers", len(providers))

	bookedStatuses := []string{"f", "1", "1", "2", "4"}

	for _, providerID := range providers {
		var tzName string
		if err := pool.QueryRow(ctx, `SELECT timezone FROM providers WHERE id = $1`, providerID).Scan(&tzName); err != nil {
			return err
		}
		loc, err := time.LoadLocation(tzName)
		if err != nil {
			return err
		}

		now := time.Now().In(loc)
		for d := 0; d < gridDays; d++ {
			day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, d)
			if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
				continue
			}

			for hour := 7; hour < 19; hour++ {
				for _, minute := range []int{0, 30} {
					start := day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)

					// Roughly a third of slots are simply not offered.
					roll := rand.Float64()
					if roll < 0.35 {
						continue
					}

					status := "o"
					var patientID *int64
					if roll < 0.60 {
						status = bookedStatuses[rand.Intn(len(bookedStatuses))]
						patientID = &patients[rand.Intn(len(patients))]
					}

					duration := 30
					if minute == 0 && rand.Float64() < 0.15 {
						duration = 60
					}

					if err := insertAppointment(ctx, pool, providerID, patientID, start, duration, status); err != nil {
						return err
					}

					// A sprinkle of duplicate rows to exercise conflict detection.
					if rand.Float64() < 0.005 {
						dup := patients[rand.Intn(len(patients))]
						if err := insertAppointment(ctx, pool, providerID, &dup, start, 30, "1"); err != nil {
							return err
						}
					}
				}
			}

			// Occasionally allow an extra half-hour booking.
			if rand.Float64() < 0.1 {
				overStart := day.Add(time.Duration(7+rand.Intn(12))*time.Hour + 30*time.Minute)
				_, err := pool.Exec(ctx, `
					INSERT INTO overbooking_exceptions (provider_id, start_time, reason, created_at)
					VALUES ($1, $2, $3, now())
				`, providerID, overStart, "seeded exception")
				if err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func insertAppointment(ctx context.Context, pool *pgxpool.Pool, providerID uuid.UUID, patientID *int64, start time.Time, duration int, status string) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO appointments (provider_id, patient_id, start_time, duration_minutes, status, bookable, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
	`, providerID, patientID, start, duration, status, nil)
	return err
}
