package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"os/user"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/cpacia/classic-server/store"
	"github.com/cpacia/classic-server/tournament"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultDataDir = ".classicserver"
	dbName         = "classic.db"
	adminUsername  = "admin"
	userContextKey = contextKey("user")
)

type contextKey string

type Options struct {
	Listen         string   `long:"listen" env:"CLASSIC_LISTEN" default:":8080" description:"Address to serve HTTP on"`
	DataDir        string   `long:"datadir" env:"CLASSIC_DATADIR" description:"Directory holding the database (default ~/.classicserver)"`
	Config         string   `long:"config" env:"CLASSIC_CONFIG" description:"YAML file with tournament rules and the course"`
	Seed           string   `long:"seed" env:"CLASSIC_SEED" description:"Tournament JSON stored when the database has no revisions"`
	AdminPassword  string   `long:"adminpw" env:"CLASSIC_ADMIN_PASSWORD" default:"letmein" description:"Initial admin password, used only when no credentials exist"`
	JWTKey         string   `long:"jwtkey" env:"CLASSIC_JWT_KEY" description:"Hex encoded HMAC key for session tokens"`
	AllowedOrigins []string `long:"origin" env:"CLASSIC_ORIGINS" env-delim:"," description:"Origin allowed to call the API from a browser"`
	Dev            bool     `long:"dev" description:"Development mode: insecure cookies and debug logging"`
}

type Server struct {
	db     *gorm.DB
	r      chi.Router
	store  *store.Store
	rules  tournament.Rules
	course tournament.Course
	clock  clockwork.Clock
	jwtKey []byte

	loginRateLimiter *limiter.Limiter
	devMode          bool

	// saveMtx serializes writes made by this process so the revision
	// check rarely has to reject one of our own.
	saveMtx sync.Mutex
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("Could not read .env")
	}

	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if opts.Dev {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := loadConfig(opts.Config)
	if err != nil {
		log.Fatal().Err(err).Str("path", opts.Config).Msg("Loading config")
	}

	dataDir, err := resolveDataDir(opts.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Creating data directory")
	}

	db, err := initDatabase(path.Join(dataDir, dbName), opts.AdminPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("Database initialization errored")
	}

	st, err := store.New(db)
	if err != nil {
		log.Fatal().Err(err).Msg("Opening revision store")
	}
	if opts.Seed != "" {
		if err := seedStore(context.Background(), st, cfg.Rules, opts.Seed); err != nil {
			log.Fatal().Err(err).Str("path", opts.Seed).Msg("Seeding tournament")
		}
	}

	key, err := loadJWTKey(opts.JWTKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Parsing jwt key")
	}

	s := &Server{
		db:               db,
		store:            st,
		rules:            cfg.Rules,
		course:           cfg.Course,
		clock:            clockwork.NewRealClock(),
		jwtKey:           key,
		loginRateLimiter: limiter.New(memory.NewStore(), limiter.Rate{Period: 15 * time.Minute, Limit: 10}),
		devMode:          opts.Dev,
	}
	s.r = s.routes(opts.AllowedOrigins)

	log.Info().Str("listen", opts.Listen).Str("datadir", dataDir).Msg("Classic server started")
	if err := http.ListenAndServe(opts.Listen, s.r); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func (s *Server) routes(origins []string) chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: !(len(origins) == 1 && origins[0] == "*"),
		MaxAge:           300,
	}))

	r.Post("/login", s.POSTLoginHandler)
	r.Post("/logout", s.POSTLogoutHandler)
	r.Get("/auth/me", s.authMiddleware(s.GETAuthMe))
	r.Post("/changepw", s.authMiddleware(s.POSTChangePasswordHandler))

	r.Route("/api", func(r chi.Router) {
		r.Get("/tournament", s.GETTournament)
		r.Post("/save", s.POSTSave)
		r.Get("/leaderboard", s.GETLeaderboard)
		r.Get("/draft", s.GETDraft)
		r.Get("/matches/{matchID}/matchup", s.GETMatchup)
		r.Get("/course", s.GETCourse)
		r.Get("/revisions", s.authMiddleware(s.GETRevisions))
		r.Get("/history", s.GETHistory)
		r.Post("/history", s.authMiddleware(s.POSTHistory))
		r.Post("/roster/import", s.authMiddleware(s.POSTRosterImport))
	})
	return r
}

// resolveDataDir returns dir, or ~/.classicserver when dir is empty, and
// makes sure it exists.
func resolveDataDir(dir string) (string, error) {
	if dir == "" {
		// Get the OS specific home directory via the Go standard lib.
		var homeDir string
		usr, err := user.Current()
		if err == nil {
			homeDir = usr.HomeDir
		}
		// Fall back to the HOME environment variable.
		if err != nil || homeDir == "" {
			homeDir = os.Getenv("HOME")
		}
		dir = path.Join(homeDir, defaultDataDir)
	}
	return dir, ensureDir(dir)
}

// initDatabase opens the sqlite database and seeds the admin credential
// with password if none exists yet.
func initDatabase(dbPath, password string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if err := applyMigrations(db); err != nil {
		return nil, err
	}
	if err := seedCredentials(db, password); err != nil {
		return nil, err
	}
	return db, nil
}

func applyMigrations(db *gorm.DB) error {
	return db.AutoMigrate(&DBCredentials{}, &HistoricalTournament{})
}

func seedCredentials(db *gorm.DB, password string) error {
	var creds DBCredentials
	result := db.First(&creds)
	if result.Error == nil {
		return nil
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return result.Error
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	log.Info().Str("username", adminUsername).Msg("Created admin credential")
	return db.Create(&DBCredentials{Username: adminUsername, PasswordHash: string(hash)}).Error
}

// seedStore stores the tournament file at path when the store is empty.
func seedStore(ctx context.Context, st *store.Store, rules tournament.Rules, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc, err := tournament.Decode(data, rules)
	if err != nil {
		return err
	}
	content, err := tournament.Encode(doc)
	if err != nil {
		return err
	}
	wrote, err := st.Seed(ctx, content)
	if err != nil {
		return err
	}
	if wrote {
		log.Info().Str("lastUpdated", doc.Meta.LastUpdated).Msg("Seeded tournament")
	}
	return nil
}

func loadJWTKey(hexKey string) ([]byte, error) {
	if hexKey != "" {
		return hex.DecodeString(strings.TrimSpace(hexKey))
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	log.Warn().Msg("No jwt key configured, sessions will not survive a restart")
	return key, nil
}

// Validate the JWT token. It can either be in a cookie or a header.
func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.tokenClaims(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		// Token is valid, proceed
		ctx := context.WithValue(r.Context(), userContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

var (
	errMissingToken = errors.New("Missing auth token")
	errInvalidToken = errors.New("Invalid token")
)

func (s *Server) tokenClaims(r *http.Request) (*Claims, error) {
	var tokenStr string

	// First try Authorization header
	authHeader := r.Header.Get("Authorization")
	if len(authHeader) >= 7 && authHeader[:7] == "Bearer " {
		tokenStr = authHeader[7:]
	} else {
		// Fallback to auth_token cookie
		cookie, err := r.Cookie("auth_token")
		if err != nil {
			return nil, errMissingToken
		}
		tokenStr = cookie.Value
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return s.jwtKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}
	return claims, nil
}
