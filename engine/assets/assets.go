package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/grove/engine/assets/loaders"
	"github.com/spaghettifunk/grove/engine/core"
	"github.com/spaghettifunk/grove/engine/resources"
)

type AssetInfo struct {
	Path       string
	Type       resources.ResourceType
	LastLoaded time.Time
	// ID of the last loaded resource, empty if never loaded.
	ResourceID string
}

// AssetManager indexes an asset directory, loads assets through the loader
// registered for their type and, when watching, keeps the index current.
type AssetManager struct {
	dir     string
	assets  map[string]AssetInfo
	loaders map[resources.ResourceType]Loader

	mutex sync.RWMutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
	changes  chan string
}

func NewAssetManager(watch bool) (*AssetManager, error) {
	am := &AssetManager{
		assets:  make(map[string]AssetInfo),
		loaders: make(map[resources.ResourceType]Loader),
		changes: make(chan string, 16),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	if watch {
		fsWatch, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, err
		}
		am.fsnotify = fsWatch
	}
	return am, nil
}

func (am *AssetManager) Initialize(assetsDir string) error {
	am.dir = filepath.Clean(assetsDir)
	if am.fsnotify != nil {
		go am.start()
	}

	if err := am.addRecursive(am.dir); err != nil {
		return err
	}

	// Register loaders
	am.registerLoader(resources.ResourceTypeShader, &loaders.ShaderLoader{})
	am.registerLoader(resources.ResourceTypeTexture, &loaders.TextureLoader{})
	am.registerLoader(resources.ResourceTypeModel, &loaders.ModelLoader{})

	core.LogInfo("asset manager indexed %d assets under %s", am.Count(), am.dir)
	return nil
}

// Shutdown stops watching. The index stays readable.
func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()

	if am.fsnotify != nil && am.dir != "" {
		close(am.done)
		<-am.stopped
	}
	return nil
}

// Changes delivers the paths of loaded assets that were modified on disk.
// Notifications are dropped while nobody drains the channel.
func (am *AssetManager) Changes() <-chan string {
	return am.changes
}

func (am *AssetManager) Count() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

// AddRecursive starts indexing (and watching) the named directory and all sub-directories.
func (am *AssetManager) addRecursive(name string) error {
	if am.isClosed {
		return errors.New("asset manager already closed")
	}
	return am.watchRecursive(name, false)
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType resources.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// Path resolves an asset name relative to the asset directory.
func (am *AssetManager) Path(name string) string {
	return filepath.Join(am.dir, name)
}

// LoadAsset loads the named asset (relative to the asset directory) and
// tags the result with a fresh identifier.
func (am *AssetManager) LoadAsset(name string, params interface{}) (*resources.Resource, error) {
	path := am.Path(name)

	am.mutex.RLock()
	asset, exists := am.assets[path]
	am.mutex.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrAssetNotFound, path)
	}

	loader, loaderExists := am.loaders[asset.Type]
	if !loaderExists {
		return nil, fmt.Errorf("%w: no loader registered for %s", core.ErrUnknownAssetType, asset.Type)
	}

	res, err := loader.Load(path, asset.Type, params)
	if err != nil {
		return nil, err
	}
	res.ID = core.IdentifierNew()

	am.mutex.Lock()
	asset.LastLoaded = time.Now()
	asset.ResourceID = res.ID
	am.assets[path] = asset
	am.mutex.Unlock()

	core.LogDebug("loaded %s %s (%d bytes) as %s", asset.Type, res.Name, res.DataSize, res.ID)
	return res, nil
}

func (am *AssetManager) UnloadAsset(res *resources.Resource) error {
	loader, ok := am.loaders[res.Type]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownAssetType, res.Type)
	}
	return loader.Unload(res)
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					am.watchRecursive(e.Name, false)
				}
				continue
			}
			// Handle create or modify events
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				if am.handleFileEvent(e.Name) {
					am.notify(e.Name)
				}
			}
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				am.removeAsset(e.Name)
				am.fsnotify.Remove(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

func (am *AssetManager) notify(path string) {
	select {
	case am.changes <- path:
	default:
		core.LogWarn("asset change dropped: %s", path)
	}
}

// watchRecursive indexes every file under the given directory and, when
// watching, adds all directories to the watch list.
func (am *AssetManager) watchRecursive(path string, unWatch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if am.fsnotify == nil {
				return nil
			}
			if unWatch {
				return am.fsnotify.Remove(walkPath)
			}
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

// Handle the creation or modification of a file. Reports whether the file
// backs an asset that has already been loaded.
func (am *AssetManager) handleFileEvent(path string) bool {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	assetType := determineAssetType(path)
	if assetType == resources.ResourceTypeNone {
		return false
	}
	prev, known := am.assets[path]
	am.assets[path] = AssetInfo{
		Path:       path,
		Type:       assetType,
		LastLoaded: prev.LastLoaded,
		ResourceID: prev.ResourceID,
	}
	return known && prev.ResourceID != ""
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	delete(am.assets, path)
}

func determineAssetType(path string) resources.ResourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dds", ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp":
		return resources.ResourceTypeTexture
	case ".spv":
		return resources.ResourceTypeShader
	case ".glb", ".gltf":
		return resources.ResourceTypeModel
	default:
		return resources.ResourceTypeNone
	}
}
