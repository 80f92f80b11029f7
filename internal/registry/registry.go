// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package registry

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"

	"grimm.is/netsim/internal/errors"
)

// Registry is a handle onto the mapped shared-memory region. It is safe
// for concurrent reads from multiple processes once writers (the parent,
// during Phase A) are done, per spec §4.2's concurrency note; it is not
// safe for concurrent writers.
type Registry struct {
	fd    int
	data  []byte
	reg   *shmRegistry
	path  string
	owner bool
}

func shmPath(name string) string {
	return filepath.Join("/dev/shm", strings.TrimPrefix(name, "/"))
}

// Open maps the registry shared-memory object, creating and
// zero-initializing it if create is true or if it does not yet exist.
func Open(create bool) (*Registry, error) {
	path := shmPath(ShmName)
	size := int(unsafe.Sizeof(shmRegistry{}))

	var fd int
	var err error
	created := false

	if create {
		_ = unix.Unlink(path)
		fd, err = unix.Open(path, unix.O_CREAT|unix.O_RDWR|unix.O_EXCL, 0o666)
		if err != nil {
			fd, err = unix.Open(path, unix.O_RDWR, 0o666)
			if err != nil {
				return nil, errors.Wrap(err, errors.KindUnavailable, "open registry shared memory")
			}
		} else {
			created = true
		}
	} else {
		fd, err = unix.Open(path, unix.O_RDWR, 0o666)
		if err != nil {
			fd, err = unix.Open(path, unix.O_CREAT|unix.O_RDWR, 0o666)
			if err != nil {
				return nil, errors.Wrap(err, errors.KindUnavailable, "open registry shared memory")
			}
			created = true
		}
	}

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, errors.KindUnavailable, "size registry shared memory")
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, errors.KindUnavailable, "mmap registry shared memory")
	}

	reg := (*shmRegistry)(unsafe.Pointer(&data[0]))
	r := &Registry{fd: fd, data: data, reg: reg, path: path, owner: created}
	if created {
		r.Clear()
	}
	return r, nil
}

// Close unmaps the registry and closes its file descriptor, leaving the
// backing shared-memory object in place for other processes.
func (r *Registry) Close() error {
	if err := unix.Munmap(r.data); err != nil {
		return errors.Wrap(err, errors.KindInternal, "munmap registry")
	}
	return unix.Close(r.fd)
}

// Unlink removes the named shared-memory object. Safe to call when the
// registry was never created (spec §4.6 cleanup path).
func Unlink() error {
	if err := unix.Unlink(shmPath(ShmName)); err != nil && err != unix.ENOENT {
		return errors.Wrap(err, errors.KindInternal, "unlink registry shared memory")
	}
	return nil
}

// Clear zeroes the struct and restores version 1 (spec §4.2 "clear").
func (r *Registry) Clear() {
	zero := make([]byte, len(r.data))
	copy(r.data, zero)
	r.reg.version = 1
}

// GetOrCreateRouterCode returns the stable short code for routerName,
// allocating one from the first free slot if this is the first call for
// that name (spec §4.2).
func (r *Registry) GetOrCreateRouterCode(routerName string) (string, error) {
	reg := r.reg

	scanLimit := int(reg.routerCount) + 10
	if scanLimit > maxRouters {
		scanLimit = maxRouters
	}
	for i := 0; i < scanLimit; i++ {
		e := &reg.routers[i]
		if e.active != 0 && cStringGet(e.name[:]) == routerName {
			return cStringGet(e.code[:]), nil
		}
	}

	if reg.routerCount >= maxRouters {
		return "", errors.Errorf(errors.KindExhausted, "registry: router capacity (%d) exhausted", maxRouters)
	}

	for i := 0; i < maxRouters; i++ {
		e := &reg.routers[i]
		if e.active != 0 {
			continue
		}
		cStringSet(e.name[:], routerName)
		code := fmt.Sprintf("r%03d", reg.nextRouterCode)
		reg.nextRouterCode++
		cStringSet(e.code[:], code)
		e.active = 1 // set last: readers never observe a valid entry with a stale name
		reg.routerCount++
		return code, nil
	}

	return "", errors.Errorf(errors.KindExhausted, "registry: no free router slot")
}

// GetOrCreateInterfaceCode returns the stable short code for
// (routerCode, interfaceName), allocated from routerCode's per-router
// block. Unlike the original (which hands back a pointer into a
// thread-local static buffer, invalidated by the next call), this
// returns an owned Go string — resolving spec §9's second Open Question.
func (r *Registry) GetOrCreateInterfaceCode(routerCode, interfaceName string) (string, error) {
	reg := r.reg

	idx, err := routerIndex(routerCode)
	if err != nil {
		return "", err
	}

	base := idx * maxInterfacesPerRouter
	for i := 0; i < maxInterfacesPerRouter; i++ {
		e := &reg.interfaces[base+i]
		if e.active != 0 && cStringGet(e.routerCode[:]) == routerCode && cStringGet(e.name[:]) == interfaceName {
			return cStringGet(e.code[:]), nil
		}
	}

	for i := 0; i < maxInterfacesPerRouter; i++ {
		e := &reg.interfaces[base+i]
		if e.active != 0 {
			continue
		}
		cStringSet(e.routerCode[:], routerCode)
		cStringSet(e.name[:], interfaceName)
		code := fmt.Sprintf("i%03d", reg.nextInterfaceCodes[idx])
		reg.nextInterfaceCodes[idx]++
		cStringSet(e.code[:], code)
		e.active = 1
		reg.interfaceCount++
		return code, nil
	}

	return "", errors.Errorf(errors.KindExhausted, "registry: interface capacity (%d) for router %s exhausted", maxInterfacesPerRouter, routerCode)
}

func routerIndex(routerCode string) (int, error) {
	if len(routerCode) < 2 || routerCode[0] != 'r' {
		return 0, errors.Errorf(errors.KindValidation, "registry: malformed router code %q", routerCode)
	}
	idx, err := strconv.Atoi(routerCode[1:])
	if err != nil {
		return 0, errors.Wrapf(err, errors.KindValidation, "registry: malformed router code %q", routerCode)
	}
	if idx < 0 || idx >= maxRouters {
		return 0, errors.Errorf(errors.KindValidation, "registry: router code %q out of range", routerCode)
	}
	return idx, nil
}

// Bridge is the caller-facing view of one bridge registry entry.
type Bridge struct {
	Name    string
	Subnet  string
	Created bool
}

// RegisterBridge returns the slot index for bridgeName, creating it
// (with Created=false) if this is the first registration for that name.
// Names and subnets longer than 31 bytes are truncated, matching the
// original's fixed 32-byte fields.
func (r *Registry) RegisterBridge(bridgeName, subnet string) (int, error) {
	reg := r.reg

	scanLimit := int(reg.bridgeCount) + 10
	if scanLimit > maxBridges {
		scanLimit = maxBridges
	}
	for i := 0; i < scanLimit; i++ {
		e := &reg.bridges[i]
		if e.active != 0 && cStringGet(e.name[:]) == bridgeName {
			return i, nil
		}
	}

	for i := 0; i < maxBridges; i++ {
		e := &reg.bridges[i]
		if e.active != 0 {
			continue
		}
		cStringSet(e.name[:], bridgeName)
		cStringSet(e.subnet[:], subnet)
		e.created = 0
		e.active = 1
		reg.bridgeCount++
		return i, nil
	}

	return -1, errors.Errorf(errors.KindExhausted, "registry: bridge capacity (%d) exhausted", maxBridges)
}

// MarkBridgeCreated sets the created flag for the bridge at slot idx.
func (r *Registry) MarkBridgeCreated(idx int) error {
	if idx < 0 || idx >= maxBridges {
		return errors.Errorf(errors.KindValidation, "registry: bridge slot %d out of range", idx)
	}
	r.reg.bridges[idx].created = 1
	return nil
}

// FindBridgeBySubnet returns the first active bridge entry whose subnet
// matches exactly (subnets are always canonical "network/prefix" form).
func (r *Registry) FindBridgeBySubnet(subnet string) (Bridge, bool) {
	reg := r.reg
	for i := 0; i < maxBridges; i++ {
		e := &reg.bridges[i]
		if e.active != 0 && cStringGet(e.subnet[:]) == subnet {
			return Bridge{
				Name:    cStringGet(e.name[:]),
				Subnet:  cStringGet(e.subnet[:]),
				Created: e.created != 0,
			}, true
		}
	}
	return Bridge{}, false
}
