package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Connection string schemes understood by Open.
const (
	SchemeMemory     = "memory"
	SchemePebble     = "pebble"
	SchemeBolt       = "bolt"
	SchemeClickHouse = "clickhouse"
	SchemePostgres   = "postgres"
	SchemeOpenSearch = "opensearch"
	SchemeKafka      = "kafka"
)

// ConnectionString is a parsed store address of the form
// scheme://[user[:password]@]host[,host...][/path][?params]. File backed
// schemes take everything before the query as a path instead.
type ConnectionString struct {
	Scheme   string
	Username string
	Password string
	Hosts    []string
	Path     string
	Params   url.Values
	// Raw is the original string, handed as is to drivers with their own DSN format.
	Raw string
}

// String returns Raw with any password masked.
func (c ConnectionString) String() string {
	scheme, rest, ok := strings.Cut(c.Raw, "://")
	if !ok {
		return c.Raw
	}
	end := strings.Index(rest, "?")
	if end < 0 {
		end = len(rest)
	}
	at := strings.LastIndex(rest[:end], "@")
	if at < 0 {
		return c.Raw
	}
	user, _, hasPass := strings.Cut(rest[:at], ":")
	if !hasPass {
		return c.Raw
	}
	return scheme + "://" + user + ":***" + rest[at:]
}

// ParseConnectionString parses s and checks that it names a known store with
// everything that store needs.
func ParseConnectionString(s string) (ConnectionString, error) {
	s = strings.TrimSpace(s)
	cs := ConnectionString{Raw: s}

	scheme, rest, ok := strings.Cut(s, "://")
	if !ok || scheme == "" {
		return cs, fmt.Errorf("invalid connection string: missing scheme")
	}
	cs.Scheme = strings.ToLower(scheme)
	if cs.Scheme == "postgresql" {
		cs.Scheme = SchemePostgres
	}

	rest, query, _ := strings.Cut(rest, "?")
	params, err := url.ParseQuery(query)
	if err != nil {
		return cs, fmt.Errorf("invalid connection string parameters: %w", err)
	}
	cs.Params = params

	switch cs.Scheme {
	case SchemeMemory:
		return cs, nil
	case SchemePebble, SchemeBolt:
		if rest == "" {
			return cs, fmt.Errorf("%s connection string needs a path", cs.Scheme)
		}
		cs.Path = rest
		return cs, nil
	case SchemeClickHouse, SchemePostgres, SchemeOpenSearch, SchemeKafka:
	default:
		return cs, fmt.Errorf("unsupported connection string scheme: %s", scheme)
	}

	// Userinfo ends at the last '@', so passwords may contain '/'.
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		userinfo := rest[:i]
		rest = rest[i+1:]
		user, pass, _ := strings.Cut(userinfo, ":")
		if cs.Username, err = url.PathUnescape(user); err != nil {
			return cs, fmt.Errorf("invalid connection string user: %w", err)
		}
		if cs.Password, err = url.PathUnescape(pass); err != nil {
			return cs, fmt.Errorf("invalid connection string password: %w", err)
		}
	}

	authority, path, _ := strings.Cut(rest, "/")
	cs.Path = path

	if authority == "" {
		return cs, fmt.Errorf("%s connection string needs at least one host", cs.Scheme)
	}
	for _, h := range strings.Split(authority, ",") {
		if h == "" {
			return cs, fmt.Errorf("invalid connection string: empty host")
		}
		cs.Hosts = append(cs.Hosts, h)
	}

	return cs, nil
}

func (c ConnectionString) boolParam(name string) (bool, error) {
	v := c.Params.Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s parameter: %w", name, err)
	}
	return b, nil
}

func (c ConnectionString) intParam(name string) (int, error) {
	v := c.Params.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter: %w", name, err)
	}
	return n, nil
}

func (c ConnectionString) durationParam(name string) (time.Duration, error) {
	v := c.Params.Get(name)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter: %w", name, err)
	}
	return d, nil
}

func (c ConnectionString) compressed() (bool, error) {
	switch c.Params.Get("compress") {
	case "", "none":
		return false, nil
	case "zstd":
		return true, nil
	default:
		return false, fmt.Errorf("unsupported compression: %s", c.Params.Get("compress"))
	}
}

// Open connects to the store cs names.
func Open(ctx context.Context, cs ConnectionString) (Store, error) {
	switch cs.Scheme {
	case SchemeMemory:
		return NewMemoryStore(), nil

	case SchemePebble:
		compress, err := cs.compressed()
		if err != nil {
			return nil, err
		}
		fsync, err := ParseFsyncMode(cs.Params.Get("fsync"))
		if err != nil {
			return nil, err
		}
		interval, err := cs.durationParam("fsync_interval")
		if err != nil {
			return nil, err
		}
		return opened(NewPebbleStore(PebbleStoreConfig{DataDir: cs.Path, Fsync: fsync, FsyncInterval: interval, Compress: compress}))

	case SchemeBolt:
		compress, err := cs.compressed()
		if err != nil {
			return nil, err
		}
		noSync, err := cs.boolParam("nosync")
		if err != nil {
			return nil, err
		}
		timeout, err := cs.durationParam("timeout")
		if err != nil {
			return nil, err
		}
		return opened(NewBoltStore(BoltStoreConfig{Path: cs.Path, NoSync: noSync, Timeout: timeout, Compress: compress}))

	case SchemeClickHouse:
		s := NewClickHouseStore(ClickHouseStoreConfig{DSN: cs.Raw})
		if err := s.Connect(ctx); err != nil {
			return nil, err
		}
		return s, nil

	case SchemePostgres:
		return opened(NewPostgresStore(ctx, cs.Raw))

	case SchemeOpenSearch:
		useTLS, err := cs.boolParam("tls")
		if err != nil {
			return nil, err
		}
		insecure, err := cs.boolParam("insecure")
		if err != nil {
			return nil, err
		}
		proto := "http://"
		if useTLS {
			proto = "https://"
		}
		addrs := make([]string, len(cs.Hosts))
		for i, h := range cs.Hosts {
			addrs[i] = proto + h
		}
		return opened(NewOpenSearchStore(OpenSearchStoreConfig{
			Addresses:          addrs,
			Username:           cs.Username,
			Password:           cs.Password,
			InsecureSkipVerify: insecure,
		}))

	case SchemeKafka:
		partitions, err := cs.intParam("partitions")
		if err != nil {
			return nil, err
		}
		replication, err := cs.intParam("replication")
		if err != nil {
			return nil, err
		}
		timeout, err := cs.durationParam("write_timeout")
		if err != nil {
			return nil, err
		}
		return opened(NewKafkaStore(KafkaStoreConfig{
			Brokers:           cs.Hosts,
			NumPartitions:     partitions,
			ReplicationFactor: replication,
			WriteTimeout:      timeout,
		}))
	}

	return nil, errors.New("unsupported connection string scheme: " + cs.Scheme)
}

// opened keeps a failed constructor from yielding a non-nil Store holding a nil pointer.
func opened[S Store](s S, err error) (Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
