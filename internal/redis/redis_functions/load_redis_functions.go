package redis_functions

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

//go:embed *.lua
var luaFS embed.FS

// Libraries returns the embedded Lua libraries by file name, sorted.
func Libraries() (map[string]string, []string, error) {
	files, err := fs.ReadDir(luaFS, ".")
	if err != nil {
		return nil, nil, fmt.Errorf("read embed dir: %w", err)
	}
	code := make(map[string]string, len(files))
	names := make([]string, 0, len(files))
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".lua") {
			continue
		}
		b, err := luaFS.ReadFile(f.Name())
		if err != nil {
			return nil, nil, err
		}
		code[f.Name()] = string(b)
		names = append(names, f.Name())
	}
	sort.Strings(names)
	return code, names, nil
}

// LoadAll finds every embedded Lua file and loads/replaces it in Redis.
func LoadAll(ctx context.Context, rdb *redis.Client) error {
	code, names, err := Libraries()
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := rdb.FunctionLoadReplace(ctx, code[name]).Err(); err != nil {
			return fmt.Errorf("load lua %s: %w", name, err)
		}
		zap.L().Info("lua function loaded", zap.String("file", name))
	}
	return nil
}
