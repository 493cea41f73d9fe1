package urn

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

const (
	prefixDataset   = "urn:li:dataset:"
	prefixContainer = "urn:li:container:"
	prefixUser      = "urn:li:platformUser:"
	prefixGroup     = "urn:li:platformUserGroup:"
)

// Builder synthesizes URNs of entities on one platform. It has no state other than platform and env, and it is safe for concurrent use.
type Builder struct {
	platform types.Platform
	env      types.Env
}

func New(platform types.Platform, env types.Env) (*Builder, error) {
	if err := platform.Validate(); err != nil {
		return nil, err
	}
	if env == "" {
		env = types.DefaultEnv
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}

	return &Builder{platform: platform, env: env}, nil
}

func (x *Builder) Platform() types.Platform { return x.platform }

// PlatformURN returns urn:li:dataPlatform:{platform}
func (x *Builder) PlatformURN() types.URN {
	return types.URN("urn:li:dataPlatform:" + string(x.platform))
}

// Build returns URN of the entity identified by kind and natural key. Schema kind takes database and optional schema as separate parts because both names may contain ".". Other kinds take exactly one part.
func (x *Builder) Build(kind types.EntityKind, key ...string) (types.URN, error) {
	if kind == types.KindSchema {
		switch len(key) {
		case 1:
			return x.Container(key[0], "")
		case 2:
			return x.Container(key[0], key[1])
		default:
			return "", goerr.Wrap(types.ErrInvalidOption, "container key must be database and optional schema", goerr.V("key", key))
		}
	}

	if len(key) != 1 {
		return "", goerr.Wrap(types.ErrInvalidOption, "natural key must have one part", goerr.V("kind", kind), goerr.V("key", key))
	}

	switch kind {
	case types.KindDataset:
		return x.Dataset(key[0])
	case types.KindUser:
		return x.User(key[0])
	case types.KindGroup:
		return x.Group(key[0])
	default:
		return "", goerr.Wrap(types.ErrInvalidOption, "unknown entity kind", goerr.V("kind", kind))
	}
}

// Dataset returns urn:li:dataset:(urn:li:dataPlatform:{platform},{qualifiedName},{env})
func (x *Builder) Dataset(qualifiedName string) (types.URN, error) {
	if qualifiedName == "" {
		return "", goerr.Wrap(types.ErrInvalidOption, "dataset name is empty")
	}
	return types.URN(fmt.Sprintf("%s(%s,%s,%s)", prefixDataset, x.PlatformURN(), qualifiedName, x.env)), nil
}

// User returns urn:li:platformUser:(urn:li:dataPlatform:{platform},{username})
func (x *Builder) User(username string) (types.URN, error) {
	if username == "" {
		return "", goerr.Wrap(types.ErrInvalidOption, "username is empty")
	}
	return types.URN(fmt.Sprintf("%s(%s,%s)", prefixUser, x.PlatformURN(), username)), nil
}

// Group returns urn:li:platformUserGroup:(urn:li:dataPlatform:{platform},{groupName})
func (x *Builder) Group(groupName string) (types.URN, error) {
	if groupName == "" {
		return "", goerr.Wrap(types.ErrInvalidOption, "group name is empty")
	}
	return types.URN(fmt.Sprintf("%s(%s,%s)", prefixGroup, x.PlatformURN(), groupName)), nil
}

// Container returns urn:li:container:{guid} of a database (schema is empty) or a schema. guid is MD5 of key-sorted compact JSON of platform, database and schema.
func (x *Builder) Container(database, schema string) (types.URN, error) {
	if database == "" {
		return "", goerr.Wrap(types.ErrInvalidOption, "database name is empty")
	}

	key := map[string]string{
		"platform": string(x.platform),
		"database": database,
	}
	if schema != "" {
		key["schema"] = schema
	}

	guid, err := GUID(key)
	if err != nil {
		return "", err
	}
	return types.URN(prefixContainer + guid), nil
}

// GUID returns lower-case hex MD5 of key. Keys are sorted and the JSON is compact with non-ASCII characters escaped as \uXXXX.
func GUID(key map[string]string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(key); err != nil {
		return "", goerr.Wrap(err, "failed to encode container key")
	}

	raw := escapeNonASCII(bytes.TrimRight(buf.Bytes(), "\n"))
	sum := md5.Sum(raw)
	return hex.EncodeToString(sum[:]), nil
}

func escapeNonASCII(src []byte) []byte {
	var out bytes.Buffer
	for _, r := range string(src) {
		if r < 0x80 {
			out.WriteRune(r)
			continue
		}
		if r > 0xFFFF {
			r1, r2 := utf16.EncodeRune(r)
			fmt.Fprintf(&out, `\u%04x\u%04x`, r1, r2)
			continue
		}
		fmt.Fprintf(&out, `\u%04x`, r)
	}
	return out.Bytes()
}

// KindOf returns entity kind of the URN by its prefix.
func KindOf(urn types.URN) (types.EntityKind, bool) {
	s := string(urn)
	switch {
	case strings.HasPrefix(s, prefixDataset):
		return types.KindDataset, true
	case strings.HasPrefix(s, prefixContainer):
		return types.KindSchema, true
	case strings.HasPrefix(s, prefixUser):
		return types.KindUser, true
	case strings.HasPrefix(s, prefixGroup):
		return types.KindGroup, true
	default:
		return "", false
	}
}

// EntityType returns entity type name of the catalog service for the kind.
func EntityType(kind types.EntityKind) string {
	switch kind {
	case types.KindDataset:
		return "dataset"
	case types.KindSchema:
		return "container"
	case types.KindUser:
		return "platformUser"
	case types.KindGroup:
		return "platformUserGroup"
	default:
		return ""
	}
}
