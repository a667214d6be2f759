package main

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const sessionTimeout = 1 * time.Hour

type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
}

type authSession struct {
	Token     string
	Username  string
	ExpiresAt time.Time
}

// UserManager gates the HTTP API. The editor itself is single-operator; this
// only authenticates the browser client, it does not make editing multi-user.
type UserManager struct {
	mu       sync.RWMutex
	users    map[string]*User
	sessions map[string]*authSession // token -> session
	storage  *Storage
	log      *logrus.Entry
}

func NewUserManager(storage *Storage, log *logrus.Entry) *UserManager {
	return &UserManager{
		users:    make(map[string]*User),
		sessions: make(map[string]*authSession),
		storage:  storage,
		log:      log,
	}
}

func (um *UserManager) Register(username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return errors.New("username and password required")
	}
	if strings.EqualFold(username, "system") {
		return errors.New("reserved username")
	}

	um.mu.Lock()
	defer um.mu.Unlock()
	if _, exists := um.users[username]; exists {
		return errors.New("user already exists")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	um.users[username] = &User{Username: username, PasswordHash: string(hashed)}
	um.saveUsersLocked()
	return nil
}

func (um *UserManager) Login(username, password string) (string, error) {
	um.mu.RLock()
	user, exists := um.users[username]
	um.mu.RUnlock()
	if !exists {
		return "", errors.New("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", errors.New("invalid credentials")
	}

	token, err := generateToken()
	if err != nil {
		return "", errors.New("failed to generate session token")
	}
	um.mu.Lock()
	um.sessions[token] = &authSession{
		Token:     token,
		Username:  username,
		ExpiresAt: time.Now().Add(sessionTimeout),
	}
	um.mu.Unlock()

	go um.cleanupExpiredSessions()
	return token, nil
}

// generateToken creates a secure random token.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// ValidateToken checks that a token is valid and not expired.
func (um *UserManager) ValidateToken(token string) (string, error) {
	um.mu.RLock()
	session, exists := um.sessions[token]
	um.mu.RUnlock()
	if !exists {
		return "", errors.New("invalid token")
	}
	if time.Now().After(session.ExpiresAt) {
		um.mu.Lock()
		delete(um.sessions, token)
		um.mu.Unlock()
		return "", errors.New("session expired")
	}
	return session.Username, nil
}

func (um *UserManager) Logout(token string) {
	um.mu.Lock()
	defer um.mu.Unlock()
	delete(um.sessions, token)
}

func (um *UserManager) cleanupExpiredSessions() {
	um.mu.Lock()
	defer um.mu.Unlock()
	now := time.Now()
	for token, session := range um.sessions {
		if now.After(session.ExpiresAt) {
			delete(um.sessions, token)
		}
	}
}

func (um *UserManager) Load() {
	um.mu.Lock()
	defer um.mu.Unlock()

	var loaded map[string]*User
	err := um.storage.ReadKey(storageKeyUsers, &loaded)
	if err != nil && !os.IsNotExist(err) {
		um.log.WithError(err).Warn("load users")
	}
	if loaded != nil {
		um.users = loaded
	}
	um.ensureOperatorLocked()
}

// ensureOperatorLocked creates the default operator account on first start so
// the browser client can always log in. Caller holds the lock.
func (um *UserManager) ensureOperatorLocked() {
	if len(um.users) > 0 {
		return
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte("editor"), bcrypt.DefaultCost)
	if err != nil {
		um.log.WithError(err).Error("hash default operator password")
		return
	}
	um.users["editor"] = &User{Username: "editor", PasswordHash: string(hashed)}
	um.saveUsersLocked()
	um.log.Info("default operator account created")
}

func (um *UserManager) saveUsersLocked() {
	if err := um.storage.WriteKey(storageKeyUsers, um.users); err != nil {
		um.log.WithError(err).Warn("save users")
	}
}
