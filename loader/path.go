package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eqasim-org/drt-analysis/analysis/algo"
)

// Path 数据来源：本地文件或MongoDB的{db}.{col}
type Path struct {
	File string
	DB   string
	Coll string
}

func NewPath(filePathOrColl string) (*Path, error) {
	// 检查filePathOrColl是否作为文件存在
	if _, err := os.Stat(filePathOrColl); err == nil {
		return &Path{
			File: filePathOrColl,
		}, nil
	}
	dbDotColl := strings.TrimSpace(filePathOrColl)
	if dbDotColl == "" {
		return nil, nil
	}
	splitted := strings.Split(dbDotColl, ".")
	if len(splitted) != 2 || splitted[0] == "" || splitted[1] == "" {
		return nil, fmt.Errorf("%w: %q is neither an existing file nor {db}.{col}", algo.ErrConfig, dbDotColl)
	}
	return &Path{
		DB:   splitted[0],
		Coll: splitted[1],
	}, nil
}

func (p *Path) IsFile() bool {
	return p.File != ""
}

func (p *Path) String() string {
	if p.IsFile() {
		return p.File
	}
	return p.DB + "." + p.Coll
}

// GetCachePath 集合下载后的本地缓存文件名
func (p *Path) GetCachePath() string {
	if p.File != "" {
		path, err := filepath.Abs(p.File)
		if err != nil {
			log.Panicf("failed to get absolute path of %s: %v", p.File, err)
		}
		return path
	}
	return p.DB + "." + p.Coll + ".bson"
}
