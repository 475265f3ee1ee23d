package domain

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipping  OrderStatus = "shipping"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusShipping,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusRefunded:
		return true
	}
	return false
}

// TransitionPolicy decides which order status moves SetOrderStatus accepts.
// A policy without a graph accepts everything except leaving cancelled.
type TransitionPolicy struct {
	name  string
	graph map[OrderStatus][]OrderStatus
}

const (
	PolicyPermissive = "permissive"
	PolicyStrict     = "strict"
)

func PermissivePolicy() TransitionPolicy {
	return TransitionPolicy{name: PolicyPermissive}
}

func StrictPolicy() TransitionPolicy {
	return TransitionPolicy{
		name: PolicyStrict,
		graph: map[OrderStatus][]OrderStatus{
			OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
			OrderStatusConfirmed: {OrderStatusShipping, OrderStatusCancelled},
			OrderStatusShipping:  {OrderStatusDelivered, OrderStatusCancelled},
			OrderStatusDelivered: {},
			OrderStatusCancelled: {},
		},
	}
}

// PolicyByName resolves the STATUS_POLICY setting.
func PolicyByName(name string) (TransitionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyPermissive:
		return PermissivePolicy(), nil
	case PolicyStrict:
		return StrictPolicy(), nil
	}
	return TransitionPolicy{}, fmt.Errorf("unknown status policy %q", name)
}

func (p TransitionPolicy) Name() string {
	if p.name == "" {
		return PolicyPermissive
	}
	return p.name
}

// Check returns ErrInvalidTransition when from -> to is not accepted.
// Staying on the same status is always accepted.
func (p TransitionPolicy) Check(from, to OrderStatus) error {
	if from == to {
		return nil
	}
	if from == OrderStatusCancelled {
		return InvalidTransitionf("order is cancelled, status cannot change to %s", to)
	}
	if p.graph == nil {
		return nil
	}
	for _, next := range p.graph[from] {
		if next == to {
			return nil
		}
	}
	return InvalidTransitionf("cannot change order status from %s to %s", from, to)
}

// Graph returns a copy of the allowed moves, nil for a permissive policy.
func (p TransitionPolicy) Graph() map[OrderStatus][]OrderStatus {
	if p.graph == nil {
		return nil
	}
	out := make(map[OrderStatus][]OrderStatus, len(p.graph))
	for k, v := range p.graph {
		out[k] = append([]OrderStatus(nil), v...)
	}
	return out
}

type policyFile struct {
	Name        string              `yaml:"name"`
	Transitions map[string][]string `yaml:"transitions"`
}

// ParseTransitionPolicy reads a YAML policy:
//
//	name: shop-default
//	transitions:
//	  pending: [confirmed, cancelled]
//	  confirmed: [shipping, cancelled]
func ParseTransitionPolicy(data []byte) (TransitionPolicy, error) {
	var f policyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return TransitionPolicy{}, fmt.Errorf("parse status policy: %w", err)
	}
	if len(f.Transitions) == 0 {
		return TransitionPolicy{}, fmt.Errorf("status policy %q has no transitions", f.Name)
	}
	graph := make(map[OrderStatus][]OrderStatus, len(OrderStatuses))
	for _, s := range OrderStatuses {
		graph[s] = []OrderStatus{}
	}
	keys := make([]string, 0, len(f.Transitions))
	for k := range f.Transitions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		from := OrderStatus(strings.ToLower(strings.TrimSpace(k)))
		if !from.Valid() {
			return TransitionPolicy{}, fmt.Errorf("status policy: unknown status %q", k)
		}
		for _, t := range f.Transitions[k] {
			to := OrderStatus(strings.ToLower(strings.TrimSpace(t)))
			if !to.Valid() {
				return TransitionPolicy{}, fmt.Errorf("status policy: unknown status %q", t)
			}
			graph[from] = append(graph[from], to)
		}
	}
	name := f.Name
	if name == "" {
		name = "custom"
	}
	return TransitionPolicy{name: name, graph: graph}, nil
}
