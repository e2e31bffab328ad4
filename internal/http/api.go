package http

import (
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"itemscout/internal/auth"
	"itemscout/internal/service"
	"itemscout/internal/storage"
)

const (
	userCacheTTL     = 5 * time.Minute
	userCacheCleanup = 10 * time.Minute

	defaultMaxUploadBytes = 5 << 20
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Users          service.UserService
	Items          service.ItemService
	Tokens         *auth.TokenIssuer
	Storage        storage.Service
	Logger         *logrus.Logger
	MaxUploadBytes int64
	// TrustedProxies lists the IPs or CIDR ranges whose X-Forwarded-Proto is honored.
	TrustedProxies []string
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users          service.UserService
	items          service.ItemService
	tokens         *auth.TokenIssuer
	storage        storage.Service
	logger         *logrus.Logger
	userCache      *cache.Cache
	maxUploadBytes int64
	trustedProxies []netip.Prefix
}

func NewHandler(deps Deps) (*Handler, error) {
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = defaultMaxUploadBytes
	}
	proxies, err := ParseTrustedProxies(deps.TrustedProxies)
	if err != nil {
		return nil, err
	}
	return &Handler{
		users:          deps.Users,
		items:          deps.Items,
		tokens:         deps.Tokens,
		storage:        deps.Storage,
		logger:         deps.Logger,
		userCache:      cache.New(userCacheTTL, userCacheCleanup),
		maxUploadBytes: deps.MaxUploadBytes,
		trustedProxies: proxies,
	}, nil
}

// ParseTrustedProxies accepts bare IPs and CIDR ranges.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

func (h *Handler) fromTrustedProxy(c *gin.Context) bool {
	if len(h.trustedProxies) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(c.RemoteIP())
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range h.trustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// staticStore is implemented by storage drivers whose files this server serves itself.
type staticStore interface {
	Dir() string
	URLPrefix() string
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(h.requestLogger(), secureHeaders())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if local, ok := h.storage.(staticStore); ok {
		router.Static(local.URLPrefix(), local.Dir())
	}

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
		authGroup.GET("/me", h.requireAuth, h.me)

		items := api.Group("/items", h.requireAuth)
		items.GET("", h.listItems)
		items.POST("", h.createItem)
		items.GET("/search", h.searchItems)
		items.POST("/upload", h.uploadImage)
		items.GET("/:id", h.getItem)
		items.PUT("/:id", h.updateItem)
		items.DELETE("/:id", h.deleteItem)

		users := api.Group("/users", h.requireAuth)
		users.GET("/:id", h.getUser)
	}
}
