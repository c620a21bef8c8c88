package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"prizeboard/internal/competition"
	"prizeboard/internal/config"
	"prizeboard/internal/geo"
	"prizeboard/internal/models"
	"prizeboard/internal/repository"
	"prizeboard/internal/scoring"
	"prizeboard/internal/service"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	TotalUsers        = 200
	SegmentsPerUser   = 25
	BatchSize         = 500
	UserIDPrefix      = "rider_"
	PendingEveryNth   = 10
	CityCenterLon     = 2.3522
	CityCenterLat     = 48.8566
	CityRadiusDegrees = 0.08
)

var ageGroups = []competition.AgeGroup{
	competition.AgeYoungerThanNineteen,
	competition.AgeBetweenNineteenAndThirty,
	competition.AgeBetweenThirtyAndSixtyFive,
	competition.AgeOlderThanSixtyFive,
}

func main() {
	log.Println("Starting seeder for Prizeboard...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := initPostgres(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	log.Println("Connected to PostgreSQL")

	postgresRepo := repository.NewPostgresRepository(db)
	segmentRepo := repository.NewSegmentRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	defer postgresRepo.Close()

	if err := postgresRepo.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	clock := clockwork.NewRealClock()
	scorer := scoring.NewScorer(segmentRepo, profileRepo)
	svc := service.NewCompetitionService(postgresRepo, nil, scorer, scoring.NewBuilder(scorer, nil, logger), clock, logger)

	ctx := context.Background()
	now := clock.Now().UTC()
	rng := rand.New(rand.NewSource(now.UnixNano()))

	log.Printf("Generating %d riders with %d segments each...", TotalUsers, SegmentsPerUser)
	profiles := generateProfiles(rng, TotalUsers)
	if err := profileRepo.BulkUpsertProfiles(ctx, profiles, BatchSize); err != nil {
		log.Fatalf("Failed to seed profiles: %v", err)
	}

	startTime := time.Now()
	segments := generateSegments(rng, profiles, now)
	if err := segmentRepo.BulkInsertSegments(ctx, segments, BatchSize); err != nil {
		log.Fatalf("Failed to seed segments: %v", err)
	}
	duration := time.Since(startTime)
	log.Printf("   Inserted %d segments in %v (%.0f segments/sec)",
		len(segments), duration, float64(len(segments))/duration.Seconds())

	finished, err := seedCompetition(ctx, svc, postgresRepo, profiles, models.CreateCompetitionRequest{
		Name:            "Clean Air Month",
		Description:     "Save as much CO2 and NOx as possible over the last month",
		Criteria:        []competition.Criterion{competition.CriterionSavedCO2Emissions, competition.CriterionSavedNOxEmissions},
		WinnerThreshold: 3,
		StartDate:       now.AddDate(0, 0, -30),
		EndDate:         now.AddDate(0, 0, -1),
	})
	if err != nil {
		log.Fatalf("Failed to seed finished competition: %v", err)
	}

	open, err := seedCompetition(ctx, svc, postgresRepo, profiles, models.CreateCompetitionRequest{
		Name:            "City Centre Commute",
		Description:     "Particulate matter saved inside the city centre",
		Criteria:        []competition.Criterion{competition.CriterionSavedPM10Emissions},
		AgeGroups:       []competition.AgeGroup{competition.AgeBetweenNineteenAndThirty, competition.AgeBetweenThirtyAndSixtyFive},
		WinnerThreshold: 5,
		StartDate:       now.AddDate(0, 0, -14),
		EndDate:         now.AddDate(0, 0, 14),
		RegionWKT:       geo.MarshalRegion(cityCentre()),
	})
	if err != nil {
		log.Fatalf("Failed to seed open competition: %v", err)
	}

	awards, err := svc.AssignWinners(ctx, finished.ID)
	if err != nil {
		log.Fatalf("Failed to assign winners: %v", err)
	}
	log.Printf("Winners of %q:", finished.Name)
	for _, a := range awards {
		log.Printf("   %d. %s - Score: %.1f", a.Rank, a.UserID, a.Score)
		for _, p := range a.Prizes {
			log.Printf("      %s: %s", p.PrizeName, p.Message)
		}
	}

	page, err := svc.GetLeaderboardPage(ctx, open.ID, 0, 10)
	if err != nil {
		log.Fatalf("Failed to get leaderboard: %v", err)
	}
	log.Printf("Top 10 of %q (%d ranked):", open.Name, page.Total)
	for _, e := range page.Data {
		log.Printf("   %d. %s - Score: %.1f", e.Rank, e.UserID, e.TotalScore)
	}

	log.Println("Seeder finished!")
}

// seedCompetition creates a competition, registers every rider and attaches prizes.
// Every tenth rider is left pending moderation.
func seedCompetition(ctx context.Context, svc *service.CompetitionService, repo *repository.PostgresRepository, profiles []models.Profile, req models.CreateCompetitionRequest) (*models.Competition, error) {
	comp, err := svc.CreateCompetition(ctx, req)
	if err != nil {
		return nil, err
	}

	// Registrations are written directly so finished competitions get a roster too
	for i, p := range profiles {
		status := competition.StatusApproved
		if i%PendingEveryNth == 0 {
			status = competition.StatusPendingModeration
		}
		if _, err := repo.RegisterParticipant(ctx, &models.CompetitionParticipant{
			ID:                 uuid.NewString(),
			CompetitionID:      comp.ID,
			UserID:             p.UserID,
			RegistrationStatus: status,
		}); err != nil {
			return nil, err
		}
	}

	sponsor, err := svc.CreateSponsor(ctx, models.CreateSponsorRequest{Name: "Velo Paris", URL: "https://velo.example.com"})
	if err != nil {
		return nil, err
	}

	medal := &models.Prize{Name: "Finisher medal", Description: "Awarded to every winner"}
	voucher := &models.Prize{Name: "Bike shop voucher", Description: "100 EUR at a partner bike shop", SponsorID: &sponsor.ID}
	for _, p := range []*models.Prize{medal, voucher} {
		if err := svc.CreatePrize(ctx, p); err != nil {
			return nil, err
		}
	}

	first := 1
	rules := []models.AttachPrizeRequest{
		{PrizeID: medal.ID, PrizeAttributionTemplate: "You finished {rank_ordinal} with {score} saved"},
		{PrizeID: voucher.ID, UserRank: &first, PrizeAttributionTemplate: "Winner! {score} saved"},
	}
	for _, r := range rules {
		if _, err := svc.AttachPrize(ctx, comp.ID, r); err != nil {
			return nil, err
		}
	}

	log.Printf("Seeded competition %q (%s)", comp.Name, comp.Slug)
	return comp, nil
}

// generateProfiles creates riders with random age groups
func generateProfiles(rng *rand.Rand, count int) []models.Profile {
	profiles := make([]models.Profile, count)
	for i := 0; i < count; i++ {
		profiles[i] = models.Profile{
			UserID:   fmt.Sprintf("%s%04d", UserIDPrefix, i+1),
			Username: fmt.Sprintf("Rider %d", i+1),
			AgeGroup: ageGroups[rng.Intn(len(ageGroups))],
		}
	}
	return profiles
}

// generateSegments creates short random bike trips spread over the last month
func generateSegments(rng *rand.Rand, profiles []models.Profile, now time.Time) []models.Segment {
	segments := make([]models.Segment, 0, len(profiles)*SegmentsPerUser)
	for _, p := range profiles {
		for j := 0; j < SegmentsPerUser; j++ {
			start := now.Add(-time.Duration(rng.Int63n(int64(30 * 24 * time.Hour))))
			end := start.Add(time.Duration(5+rng.Intn(55)) * time.Minute)
			if end.After(now) {
				end = now
			}

			id := uuid.NewString()
			segments = append(segments, models.Segment{
				ID:          id,
				UserID:      p.UserID,
				VehicleType: "bike",
				Geom:        geo.EWKT(randomTrack(rng)),
				StartDate:   start,
				EndDate:     end,
				Emission: &models.SegmentEmission{
					SegmentID: id,
					SO2Saved:  amount(rng, 5),
					NOxSaved:  amount(rng, 300),
					CO2Saved:  amount(rng, 900),
					COSaved:   amount(rng, 400),
					PM10Saved: amount(rng, 20),
				},
			})
		}
	}
	return segments
}

func randomTrack(rng *rand.Rand) orb.LineString {
	// Twice the city radius so some trips fall outside the centre
	lon := CityCenterLon + (rng.Float64()*2-1)*CityRadiusDegrees*2
	lat := CityCenterLat + (rng.Float64()*2-1)*CityRadiusDegrees*2
	track := orb.LineString{{lon, lat}}
	for k := 0; k < 4; k++ {
		lon += (rng.Float64()*2 - 1) * 0.005
		lat += (rng.Float64()*2 - 1) * 0.005
		track = append(track, orb.Point{lon, lat})
	}
	return track
}

func cityCentre() orb.MultiPolygon {
	r := CityRadiusDegrees
	ring := orb.Ring{
		{CityCenterLon - r, CityCenterLat - r},
		{CityCenterLon + r, CityCenterLat - r},
		{CityCenterLon + r, CityCenterLat + r},
		{CityCenterLon - r, CityCenterLat + r},
		{CityCenterLon - r, CityCenterLat - r},
	}
	return orb.MultiPolygon{orb.Polygon{ring}}
}

func amount(rng *rand.Rand, limit float64) *float64 {
	v := rng.Float64() * limit
	return &v
}

// initPostgres initializes PostgreSQL connection
func initPostgres(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, err
	}

	return db, nil
}
