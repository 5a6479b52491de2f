// Package ultralogi turns tables in an embedded SQL engine into packed,
// GPU-ready byte buffers, with multi-tier caching between the engine and the
// rendering front-end.
//
// The pipeline has four tiers:
//
// 1. Result Cache: maps exact query text to materialized columnar tables.
// Any mutating statement routed through the cache-aware path invalidates the
// whole cache and advances a version counter.
//
// 2. Scalar buffer caches: two single-slot caches holding the precomputed GPU
// vertex buffer and the raw structure-of-arrays column buffer. Fetches never
// touch the engine.
//
// 3. Spatial chunk store: per-chunk vertex blobs persisted in the engine's
// own durable storage and aggregated into one combined buffer on read.
//
// 4. Voxel world: procedurally generated 32x64x32 block chunks, queryable as
// Arrow IPC streams or packed u8 buffers.
//
// # Key Packages
//
//	pkg/engine    - serialized access to the embedded SQL engine
//	pkg/packer    - the single binary codec for every buffer layout
//	pkg/transform - tile rows to vertex position/color arrays
//	pkg/cache     - result cache and single-slot buffer caches
//	pkg/chunks    - durable spatial chunk store
//	pkg/voxel     - voxel world generation and export
//	pkg/service   - operations facade owning the engine and all tiers
//
// # Quick Start
//
//	cfg := config.New()
//	svc, err := service.New(cfg, logger.Get())
//	if err != nil {
//	    return err
//	}
//	defer svc.Close()
//
//	if _, err := svc.PrecomputeGPUData(ctx, 1.0, 1.0); err != nil {
//	    return err
//	}
//	buf, err := svc.FetchPrecomputed()
//
// Every buffer shares one wire contract: a little-endian u32 element count
// followed by contiguous column or array payloads. pkg/packer is the only
// code that reads or writes that layout.
//
// Environment variables are supported in configuration files with
// ${VAR_NAME} syntax.
package ultralogi
