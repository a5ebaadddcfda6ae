package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/gov-appointments/internal/api"
	"github.com/hackgods/gov-appointments/internal/appointment"
	"github.com/hackgods/gov-appointments/internal/config"
	"github.com/hackgods/gov-appointments/internal/db"
	redisclient "github.com/hackgods/gov-appointments/internal/redis"
	"github.com/hackgods/gov-appointments/pkg/logging"
)

// departments maps each service type to the desk that handles it.
var departments = map[appointment.ServiceType]string{
	appointment.ServicePassport:     "immigration",
	appointment.ServiceLicense:      "motor-traffic",
	appointment.ServiceCertificate:  "registrar",
	appointment.ServiceRegistration: "registrar",
	appointment.ServiceVisa:         "immigration",
}

var offices = []string{"Battaramulla", "Colombo Fort", "Kandy", "Galle", "Kurunegala"}

var clockSlots = []string{"08:30", "09:00", "09:30", "10:00", "10:30", "11:00", "13:30", "14:00", "14:30", "15:00"}

func main() {
	citizens := flag.Int("citizens", 200, "number of citizens to generate")
	agents := flag.Int("agents", 12, "number of agents to spread bookings over")
	days := flag.Int("days", 14, "how many days ahead to book")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "dev").Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.LogLevel, cfg.Env)
	logger.Info().Int("citizens", *citizens).Int("agents", *agents).Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("apply schema")
	}

	// seeding runs alone, so the slot lock is skipped
	svc := appointment.NewService(appointment.NewPgRepository(pool), redisclient.NoopLocker{}, appointment.ServiceConfig{
		Location: cfg.Location,
		Logger:   zerolog.Nop(),
	})

	faker := gofakeit.New(0)
	created, conflicts, err := seedAppointments(context.Background(), svc, faker, *citizens, *agents, *days, cfg.Location, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed appointments")
	}
	logger.Info().Int("created", created).Int("conflicts", conflicts).Msg("appointments seeded")

	if err := printTokens(cfg.JWTSecret); err != nil {
		logger.Fatal().Err(err).Msg("sign tokens")
	}

	logger.Info().Msg("seed complete")
}

func seedAppointments(
	ctx context.Context,
	svc *appointment.Service,
	faker *gofakeit.Faker,
	citizens, agents, days int,
	loc *time.Location,
	logger zerolog.Logger,
) (created, conflicts int, err error) {
	tomorrow := time.Now().In(loc).AddDate(0, 0, 1)

	for i := 0; i < citizens; i++ {
		st := appointment.ServiceTypes[faker.Number(0, len(appointment.ServiceTypes)-1)]
		date := tomorrow.AddDate(0, 0, faker.Number(0, days-1))

		in := appointment.CreateInput{
			CitizenID:   fmt.Sprintf("citizen-%04d", i+1),
			CitizenName: faker.Name(),
			NIC:         faker.Numerify("#########") + "V",
			Email:       faker.Email(),
			Phone:       "07" + faker.Numerify("########"),
			ServiceType: string(st),
			Department:  departments[st],
			Date:        date.Format("2006-01-02"),
			Time:        clockSlots[faker.Number(0, len(clockSlots)-1)],
			AgentID:     fmt.Sprintf("agent-%02d", faker.Number(1, agents)),
			OfficeName:  offices[faker.Number(0, len(offices)-1)],
		}
		if faker.Number(0, 9) == 0 {
			in.Priority = string(appointment.PriorityUrgent)
		}

		appt, err := svc.Create(ctx, in)
		switch {
		case errors.Is(err, appointment.ErrSlotConflict):
			conflicts++
			continue
		case err != nil:
			return created, conflicts, fmt.Errorf("create appointment %d: %w", i, err)
		}
		created++

		// confirm some of them so the department boards have mixed states
		if faker.Number(0, 2) == 0 {
			if _, err := svc.Confirm(ctx, appt.ID, "seed"); err != nil {
				return created, conflicts, fmt.Errorf("confirm %s: %w", appt.BookingReference, err)
			}
		}

		if created%50 == 0 {
			logger.Info().Int("created", created).Msg("seed progress")
		}
	}

	return created, conflicts, nil
}

// printTokens emits one token per role for manual testing against the API.
func printTokens(secret string) error {
	principals := []api.Principal{
		{Subject: "citizen-0001", Role: api.RoleCitizen},
		{Subject: "officer-1", Role: api.RoleStaff, DepartmentID: "immigration"},
		{Subject: "admin-1", Role: api.RoleAdmin},
	}

	expires := jwt.NewNumericDate(time.Now().Add(24 * time.Hour))
	for _, p := range principals {
		token, err := api.SignToken(secret, p, jwt.RegisteredClaims{ExpiresAt: expires})
		if err != nil {
			return err
		}
		fmt.Printf("%-8s %-14s %s\n", p.Role, p.Subject, token)
	}
	return nil
}
