// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netctl

import (
	"os"
	"runtime"
	"strings"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"

	"grimm.is/netsim/internal/errors"
)

// LinuxController is the real Controller, backed by netlink and netns.
// Every "already exists" condition is treated as success, per spec
// §4.5's idempotent kernel-object creation.
type LinuxController struct{}

// New returns the real, kernel-backed Controller.
func New() Controller {
	return LinuxController{}
}

func isExists(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "exist")
}

func isNotExist(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such") || strings.Contains(msg, "not found") || os.IsNotExist(err)
}

// withHandle runs fn with a netlink.Handle scoped to namespace ns,
// without switching the calling goroutine's own namespace.
func withHandle(ns string, fn func(*netlink.Handle) error) error {
	nsHandle, err := netns.GetFromName(ns)
	if err != nil {
		return errors.Wrapf(err, errors.KindNotFound, "netctl: namespace %s not found", ns)
	}
	defer nsHandle.Close()

	handle, err := netlink.NewHandleAt(nsHandle)
	if err != nil {
		return errors.Wrapf(err, errors.KindInternal, "netctl: open netlink handle for %s", ns)
	}
	defer handle.Close()

	return fn(handle)
}

// withEnteredNS locks the calling OS thread, switches it into ns for
// the duration of fn, and restores the original namespace afterward.
// Required for operations with no netlink equivalent (sysctl writes).
func withEnteredNS(ns string, fn func() error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	orig, err := netns.Get()
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "netctl: get current namespace")
	}
	defer func() {
		netns.Set(orig)
		orig.Close()
	}()

	target, err := netns.GetFromName(ns)
	if err != nil {
		return errors.Wrapf(err, errors.KindNotFound, "netctl: namespace %s not found", ns)
	}
	defer target.Close()

	if err := netns.Set(target); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "netctl: enter namespace %s", ns)
	}
	return fn()
}

func (LinuxController) EnsureNamespace(name string) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if existing, err := netns.GetFromName(name); err == nil {
		existing.Close()
		return nil
	}

	orig, err := netns.Get()
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "netctl: get current namespace")
	}
	defer func() {
		netns.Set(orig)
		orig.Close()
	}()

	newNS, err := netns.NewNamed(name)
	if err != nil {
		if isExists(err) {
			return nil
		}
		return errors.Wrapf(err, errors.KindInternal, "netctl: create namespace %s", name)
	}
	newNS.Close()
	return nil
}

func (LinuxController) DeleteNamespace(name string) error {
	if err := netns.DeleteNamed(name); err != nil && !isNotExist(err) {
		return errors.Wrapf(err, errors.KindInternal, "netctl: delete namespace %s", name)
	}
	return nil
}

func (LinuxController) SetLoopbackUp(ns string) error {
	return withHandle(ns, func(h *netlink.Handle) error {
		link, err := h.LinkByName("lo")
		if err != nil {
			return errors.Wrapf(err, errors.KindNotFound, "netctl: lo not found in %s", ns)
		}
		if err := h.LinkSetUp(link); err != nil {
			return errors.Wrapf(err, errors.KindInternal, "netctl: bring up lo in %s", ns)
		}
		return nil
	})
}

func (LinuxController) EnableForwarding(ns string, v4, v6 bool) error {
	return withEnteredNS(ns, func() error {
		if v4 {
			if err := writeSysctl("/proc/sys/net/ipv4/ip_forward", "1"); err != nil {
				return err
			}
		}
		if v6 {
			if err := writeSysctl("/proc/sys/net/ipv6/conf/all/forwarding", "1"); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeSysctl(path, value string) error {
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "netctl: write %s", path)
	}
	return nil
}

func (LinuxController) EnsureBridge(ns, name string) error {
	return withHandle(ns, func(h *netlink.Handle) error {
		if _, err := h.LinkByName(name); err == nil {
			return nil
		}
		br := &netlink.Bridge{LinkAttrs: netlink.LinkAttrs{Name: name}}
		if err := h.LinkAdd(br); err != nil && !isExists(err) {
			return errors.Wrapf(err, errors.KindInternal, "netctl: create bridge %s in %s", name, ns)
		}
		link, err := h.LinkByName(name)
		if err != nil {
			return errors.Wrapf(err, errors.KindInternal, "netctl: lookup bridge %s in %s", name, ns)
		}
		if err := h.LinkSetUp(link); err != nil {
			return errors.Wrapf(err, errors.KindInternal, "netctl: bring up bridge %s in %s", name, ns)
		}
		return nil
	})
}

func (LinuxController) EnsureVethPair(routerEnd, hiddenEnd string) error {
	if _, err := netlink.LinkByName(routerEnd); err == nil {
		return nil
	}
	veth := &netlink.Veth{
		LinkAttrs: netlink.LinkAttrs{Name: routerEnd},
		PeerName:  hiddenEnd,
	}
	if err := netlink.LinkAdd(veth); err != nil && !isExists(err) {
		return errors.Wrapf(err, errors.KindInternal, "netctl: create veth pair %s/%s", routerEnd, hiddenEnd)
	}
	return nil
}

func (LinuxController) MoveLink(linkName, ns string) error {
	link, err := netlink.LinkByName(linkName)
	if err != nil {
		if isNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, errors.KindNotFound, "netctl: link %s not found in host namespace", linkName)
	}

	target, err := netns.GetFromName(ns)
	if err != nil {
		return errors.Wrapf(err, errors.KindNotFound, "netctl: namespace %s not found", ns)
	}
	defer target.Close()

	if err := netlink.LinkSetNsFd(link, int(target)); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "netctl: move %s into %s", linkName, ns)
	}
	return nil
}

func (LinuxController) SetMaster(ns, linkName, bridgeName string) error {
	return withHandle(ns, func(h *netlink.Handle) error {
		link, err := h.LinkByName(linkName)
		if err != nil {
			return errors.Wrapf(err, errors.KindNotFound, "netctl: link %s not found in %s", linkName, ns)
		}
		brLink, err := h.LinkByName(bridgeName)
		if err != nil {
			return errors.Wrapf(err, errors.KindNotFound, "netctl: bridge %s not found in %s", bridgeName, ns)
		}
		br, ok := brLink.(*netlink.Bridge)
		if !ok {
			return errors.Errorf(errors.KindValidation, "netctl: %s in %s is not a bridge", bridgeName, ns)
		}
		if err := h.LinkSetMaster(link, br); err != nil {
			return errors.Wrapf(err, errors.KindInternal, "netctl: enslave %s to %s in %s", linkName, bridgeName, ns)
		}
		return nil
	})
}

func (LinuxController) LinkUp(ns, linkName string) error {
	return withHandle(ns, func(h *netlink.Handle) error {
		link, err := h.LinkByName(linkName)
		if err != nil {
			return errors.Wrapf(err, errors.KindNotFound, "netctl: link %s not found in %s", linkName, ns)
		}
		if err := h.LinkSetUp(link); err != nil {
			return errors.Wrapf(err, errors.KindInternal, "netctl: bring up %s in %s", linkName, ns)
		}
		return nil
	})
}

func (LinuxController) DeleteLink(ns, linkName string) error {
	return withHandle(ns, func(h *netlink.Handle) error {
		link, err := h.LinkByName(linkName)
		if err != nil {
			if isNotExist(err) {
				return nil
			}
			return errors.Wrapf(err, errors.KindNotFound, "netctl: link %s not found in %s", linkName, ns)
		}
		if err := h.LinkDel(link); err != nil {
			return errors.Wrapf(err, errors.KindInternal, "netctl: delete %s in %s", linkName, ns)
		}
		return nil
	})
}
