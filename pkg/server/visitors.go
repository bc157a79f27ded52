package server

import (
	"net"

	"github.com/oschwald/maxminddb-golang"
)

// VisitorLocator resolves a client address to its continent with a MaxMind
// country or city database. A nil locator resolves nothing.
type VisitorLocator struct {
	db *maxminddb.Reader
}

func OpenVisitorLocator(path string) (*VisitorLocator, error) {
	db, err := maxminddb.Open(path)
	if err != nil {
		return nil, err
	}
	return &VisitorLocator{db: db}, nil
}

func (l *VisitorLocator) Close() error {
	if l == nil {
		return nil
	}
	return l.db.Close()
}

// Continent returns the English continent name for remoteAddr, which may
// carry a port, or "" when it cannot be resolved.
func (l *VisitorLocator) Continent(remoteAddr string) string {
	if l == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return ""
	}
	var record struct {
		Continent struct {
			Names map[string]string `maxminddb:"names"`
		} `maxminddb:"continent"`
	}
	if err := l.db.Lookup(ip, &record); err != nil {
		return ""
	}
	return record.Continent.Names["en"]
}
