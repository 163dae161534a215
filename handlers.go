package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cpacia/classic-server/publish"
	"github.com/cpacia/classic-server/store"
	"github.com/cpacia/classic-server/tournament"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
)

const conflictMessage = "Data was modified by another user. Reload and try again."

func (s *Server) POSTLoginHandler(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if creds.Username == "" {
		creds.Username = adminUsername
	}

	// Check if rate limit has been exceeded
	key := loginRateLimitKey(r, creds.Username)
	ctx, err := s.loginRateLimiter.Peek(r.Context(), key)
	if err != nil {
		http.Error(w, "Rate limiter error", http.StatusInternalServerError)
		return
	}
	if ctx.Reached {
		http.Error(w, "Too many failed login attempts", http.StatusTooManyRequests)
		return
	}

	if !s.checkPassword(creds.Username, creds.Password) {
		s.loginRateLimiter.Increment(r.Context(), key, 2)
		log.Warn().Str("username", creds.Username).Str("ip", r.RemoteAddr).Msg("Failed login")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	expiration := s.clock.Now().Add(12 * time.Hour)
	claims := &Claims{
		Username: creds.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiration),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(s.jwtKey)
	if err != nil {
		http.Error(w, "Could not generate token", http.StatusInternalServerError)
		return
	}

	// Set HTTP-only JWT cookie
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    tokenStr,
		HttpOnly: true,
		Secure:   !s.devMode,
		SameSite: http.SameSiteNoneMode,
		Path:     "/",
	})
	w.WriteHeader(http.StatusOK)
}

func loginRateLimitKey(r *http.Request, username string) string {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return fmt.Sprintf("%s:%s", ip, username)
}

func (s *Server) checkPassword(username, password string) bool {
	dbCreds := &DBCredentials{}
	if err := s.db.First(dbCreds, "username = ?", username).Error; err != nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(dbCreds.PasswordHash), []byte(password)) == nil
}

func (s *Server) POSTLogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   !s.devMode,
		SameSite: http.SameSiteNoneMode,
		Expires:  time.Unix(0, 0), // Expire immediately
		MaxAge:   -1,              // Force deletion
	})
	w.WriteHeader(http.StatusOK)
}

func (s *Server) GETAuthMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := r.Context().Value(userContextKey).(*Claims)
	if !ok || claims == nil {
		http.Error(w, "User info not found in context", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"username":      claims.Username,
	})
}

func (s *Server) POSTChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := r.Context().Value(userContextKey).(*Claims)
	if !ok || claims == nil {
		http.Error(w, "User info not found in context", http.StatusInternalServerError)
		return
	}

	var pwChangeReq PWChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&pwChangeReq); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if pwChangeReq.NewPassword == "" {
		http.Error(w, "New password required", http.StatusBadRequest)
		return
	}

	dbCreds := &DBCredentials{}
	if err := s.db.First(dbCreds, "username = ?", claims.Username).Error; err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(dbCreds.PasswordHash), []byte(pwChangeReq.CurrentPassword)); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pwChangeReq.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Could not check password", http.StatusInternalServerError)
		return
	}
	dbCreds.PasswordHash = string(hash)
	if err := s.db.Save(dbCreds).Error; err != nil {
		http.Error(w, "Could not save password", http.StatusInternalServerError)
		return
	}
	log.Info().Str("username", claims.Username).Msg("Password changed")
	w.WriteHeader(http.StatusOK)
}

// GETTournament serves the stored document byte for byte. The ETag is the
// store revision.
func (s *Server) GETTournament(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Read(r.Context())
	if errors.Is(err, store.ErrEmpty) {
		http.Error(w, "No tournament data", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	etag := strconv.Quote(snap.Sha)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(snap.Content)
}

// POSTSave stores a full tournament document. The caller proves itself with
// the admin password or a session token, and passes the lastUpdated stamp
// of the copy it edited.
func (s *Server) POSTSave(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Bad request")
		return
	}
	if !s.authorizeSave(w, r, req.Password) {
		return
	}

	data := bytes.TrimSpace(req.Data)
	if len(data) == 0 || data[0] != '{' {
		writeError(w, http.StatusBadRequest, "No valid data provided")
		return
	}
	doc, err := tournament.Decode(data, s.rules)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.commit(r, doc, req.ExpectedLastUpdated, "Update tournament data")
	if err != nil {
		s.writePublishError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SaveResponse{Success: true, LastUpdated: res.LastUpdated, Sha: res.Sha})
}

// authorizeSave accepts a session token, or else the admin password. Failed
// passwords count against the same limiter as logins.
func (s *Server) authorizeSave(w http.ResponseWriter, r *http.Request, password string) bool {
	if _, err := s.tokenClaims(r); err == nil {
		return true
	}

	key := loginRateLimitKey(r, adminUsername)
	ctx, err := s.loginRateLimiter.Peek(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Rate limiter error")
		return false
	}
	if ctx.Reached {
		writeError(w, http.StatusTooManyRequests, "Too many failed attempts")
		return false
	}
	if password == "" || !s.checkPassword(adminUsername, password) {
		s.loginRateLimiter.Increment(r.Context(), key, 2)
		log.Warn().Str("ip", r.RemoteAddr).Msg("Save rejected: bad password")
		writeError(w, http.StatusUnauthorized, "Incorrect password")
		return false
	}
	return true
}

func (s *Server) commit(r *http.Request, doc *tournament.Document, expected, message string) (*publish.Result, error) {
	s.saveMtx.Lock()
	defer s.saveMtx.Unlock()

	res, err := publish.Publish(r.Context(), s.store, s.rules, doc, expected, message)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("sha", res.Sha).
		Str("lastUpdated", res.LastUpdated).
		Str("message", message).
		Msg("Tournament saved")
	return res, nil
}

func (s *Server) writePublishError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, publish.ErrConflict):
		log.Info().Err(err).Msg("Save conflict")
		writeError(w, http.StatusConflict, conflictMessage)
	case errors.Is(err, tournament.ErrCaptainInMatch), errors.Is(err, tournament.ErrInvalidDocument):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Msg("Save failed")
		writeError(w, http.StatusInternalServerError, "Failed to save data")
	}
}

// loadDocument writes the error response itself and returns nil on failure.
func (s *Server) loadDocument(w http.ResponseWriter, r *http.Request) *tournament.Document {
	doc, _, err := publish.Load(r.Context(), s.store, s.rules)
	switch {
	case errors.Is(err, store.ErrEmpty):
		http.Error(w, "No tournament data", http.StatusNotFound)
		return nil
	case err != nil:
		log.Error().Err(err).Msg("Loading tournament")
		http.Error(w, "Could not load tournament", http.StatusInternalServerError)
		return nil
	}
	return doc
}

func (s *Server) GETLeaderboard(w http.ResponseWriter, r *http.Request) {
	doc := s.loadDocument(w, r)
	if doc == nil {
		return
	}

	totals := tournament.TeamTotals(doc, s.rules)
	lb := Leaderboard{
		LastUpdated: doc.Meta.LastUpdated,
		Leader:      totals.Leader(s.rules),
		Progress:    tournament.ScoringProgress(doc, s.rules),
	}
	for _, t := range []tournament.Team{s.rules.TeamA, s.rules.TeamB} {
		lb.Teams = append(lb.Teams, TeamScore{Team: t, Name: s.rules.Name(t), Points: totals[t]})
	}
	for _, group := range tournament.Foursomes(doc) {
		views := make([]MatchView, 0, len(group))
		for _, m := range group {
			front, back := tournament.EffectivePoints(doc, s.rules, m)
			views = append(views, MatchView{
				ID:      m.ID,
				Players: [2]*tournament.Player{doc.SlotPlayer(m, 0), doc.SlotPlayer(m, 1)},
				Front9:  front,
				Back9:   back,
				Holes:   m.Points.Holes,
				Status:  tournament.MatchStatus(doc, s.rules, m),
				Valid:   tournament.ValidMatchup(doc, s.rules, m),
			})
		}
		lb.Foursomes = append(lb.Foursomes, views)
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, lb)
}

func (s *Server) GETDraft(w http.ResponseWriter, r *http.Request) {
	doc := s.loadDocument(w, r)
	if doc == nil {
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, DraftResponse{
		LastUpdated: doc.Meta.LastUpdated,
		DraftBoard:  tournament.Board(doc, s.rules),
	})
}

func (s *Server) GETMatchup(w http.ResponseWriter, r *http.Request) {
	matchID, err := strconv.Atoi(chi.URLParam(r, "matchID"))
	if err != nil {
		http.Error(w, "Invalid match ID", http.StatusBadRequest)
		return
	}
	doc := s.loadDocument(w, r)
	if doc == nil {
		return
	}

	index := -1
	for i, m := range doc.Matches {
		if m.ID == matchID {
			index = i
			break
		}
	}
	if index < 0 {
		http.Error(w, "Match not found", http.StatusNotFound)
		return
	}

	mu, err := tournament.MatchupDetail(doc, s.rules, s.course, index)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, mu)
}

func (s *Server) GETCourse(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.course)
}

func (s *Server) GETRevisions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	revs, err := s.store.Log(r.Context(), limit)
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	type revision struct {
		Sha       string    `json:"sha"`
		Parent    string    `json:"parent,omitempty"`
		Message   string    `json:"message"`
		CreatedAt time.Time `json:"createdAt"`
	}
	out := make([]revision, 0, len(revs))
	for _, rev := range revs {
		out = append(out, revision{Sha: rev.Sha, Parent: rev.Parent, Message: rev.Message, CreatedAt: rev.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) GETHistory(w http.ResponseWriter, r *http.Request) {
	var tournaments []HistoricalTournament
	if err := s.db.Order("year DESC").Find(&tournaments).Error; err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tournaments": tournaments})
}

// POSTHistory archives the stored tournament's results under a year.
func (s *Server) POSTHistory(w http.ResponseWriter, r *http.Request) {
	var req ArchiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if !validateYear(req.Year) {
		http.Error(w, "Malformed year", http.StatusBadRequest)
		return
	}
	doc := s.loadDocument(w, r)
	if doc == nil {
		return
	}

	entry, err := s.archive(doc, req)
	if err != nil {
		http.Error(w, "Could not build archive", http.StatusInternalServerError)
		return
	}

	if err := s.db.Create(entry).Error; err != nil {
		if isUniqueConstraintError(err) {
			http.Error(w, "That year is already archived", http.StatusConflict)
			return
		}
		http.Error(w, fmt.Sprintf("Error creating entry: %s", err.Error()), http.StatusInternalServerError)
		return
	}
	log.Info().Int("year", entry.Year).Str("status", entry.Status).Msg("Tournament archived")
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) archive(doc *tournament.Document, req ArchiveRequest) (*HistoricalTournament, error) {
	totals := tournament.TeamTotals(doc, s.rules)
	captains := map[tournament.Team]string{}
	finalScore := map[tournament.Team]float64{}
	for _, t := range []tournament.Team{s.rules.TeamA, s.rules.TeamB} {
		captains[t] = s.rules.Name(t)
		finalScore[t] = totals[t]
	}

	var matches []HistoricalMatch
	for _, m := range doc.Matches {
		if !tournament.ValidMatchup(doc, s.rules, m) {
			continue
		}
		var score HistoricScore
		front, back := tournament.EffectivePoints(doc, s.rules, m)
		for _, res := range []tournament.Result{front, back} {
			if v, ok := res.Value(); ok {
				score.P1 += v
				score.P2 += 1 - v
			}
		}
		matches = append(matches, HistoricalMatch{
			Player1: doc.SlotPlayer(m, 0).Name,
			Player2: doc.SlotPlayer(m, 1).Name,
			Result:  score,
		})
	}

	status := "in_progress"
	if p := tournament.ScoringProgress(doc, s.rules); p.Complete == len(doc.Matches) {
		status = "complete"
	}
	name := req.Name
	if name == "" {
		name = fmt.Sprintf("The Classic %d", req.Year)
	}

	capJSON, err := json.Marshal(captains)
	if err != nil {
		return nil, err
	}
	scoreJSON, err := json.Marshal(finalScore)
	if err != nil {
		return nil, err
	}
	matchJSON, err := json.Marshal(matches)
	if err != nil {
		return nil, err
	}
	return &HistoricalTournament{
		ID:         uuid.NewString(),
		Year:       req.Year,
		Name:       name,
		Date:       req.Date,
		Venue:      req.Venue,
		Status:     status,
		Captains:   datatypes.JSON(capJSON),
		FinalScore: datatypes.JSON(scoreJSON),
		Matches:    datatypes.JSON(matchJSON),
		MVP:        req.MVP,
		Notes:      req.Notes,
	}, nil
}

// POSTRosterImport scrapes a field list and merges it into the stored
// tournament as a new revision stamped by the server. New names are only
// added before the draft starts.
func (s *Server) POSTRosterImport(w http.ResponseWriter, r *http.Request) {
	var req RosterImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		http.Error(w, "Invalid roster URL", http.StatusBadRequest)
		return
	}

	entries, err := scrapeRoster(u.String())
	if err != nil {
		log.Warn().Err(err).Str("url", u.String()).Msg("Roster scrape failed")
		http.Error(w, "Could not read roster", http.StatusBadGateway)
		return
	}

	doc := s.loadDocument(w, r)
	if doc == nil {
		return
	}
	next, added, updated, skipped := mergeRoster(doc, s.rules, entries)
	resp := RosterImportResponse{Added: added, Updated: updated, Skipped: skipped, LastUpdated: doc.Meta.LastUpdated}
	if len(skipped) > 0 {
		log.Info().Strs("skipped", skipped).Msg("Draft under way, new roster names not added")
	}
	if len(added) == 0 && len(updated) == 0 {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	tournament.Stamp(next, s.clock.Now())
	res, err := s.commit(r, next, doc.Meta.LastUpdated, fmt.Sprintf("Import roster from %s", u.Host))
	if err != nil {
		s.writePublishError(w, err)
		return
	}
	resp.LastUpdated = res.LastUpdated
	writeJSON(w, http.StatusOK, resp)
}
