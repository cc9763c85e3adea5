package cloudcache

import (
	"github.com/hashicorp/raft"

	"github.com/protobase/protobase/pkg/blockprovider"
	"github.com/protobase/protobase/pkg/cluster"
	"github.com/protobase/protobase/pkg/objectspace"
)

// CloudClusterFileStorage is the fifth Storage variant: cluster coordination
// (majority-vote exclusive root updates, via the embedded
// *cluster.ClusterFileStorage) composed with cloud storage and a
// server-scoped page cache that serves peers' page requests in-memory ->
// page cache -> local FS -> object store, per §6.
type CloudClusterFileStorage struct {
	*cluster.ClusterFileStorage
	Pages *PageCache
}

// OpenCloudCluster starts (or rejoins) this node's Raft group the same way
// cluster.Open does, then opens this node's page cache in front of cloud.
// If page cache setup fails, the already-started Raft group is left
// running; callers wanting a single teardown path should call Shutdown on
// the returned value's embedded ClusterFileStorage regardless.
func OpenCloudCluster(cfg cluster.Config, space *objectspace.ObjectSpace, servers []raft.Server, cloud *blockprovider.Cloud, opts Options) (*CloudClusterFileStorage, error) {
	cc, err := cluster.Open(cfg, space, servers)
	if err != nil {
		return nil, err
	}
	pc, err := Open(cloud, opts)
	if err != nil {
		return &CloudClusterFileStorage{ClusterFileStorage: cc}, err
	}
	return &CloudClusterFileStorage{ClusterFileStorage: cc, Pages: pc}, nil
}

// GetPage serves a peer's page request through this node's cache, the
// cluster-mode entry point PageCache.GetPage exists for.
func (c *CloudClusterFileStorage) GetPage(walID uint64, position int64) ([]byte, error) {
	return c.Pages.GetPage(walID, position)
}
