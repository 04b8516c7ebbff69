package pricing

import "testing"

func TestPriorityQueueOrdersByLess(t *testing.T) {
	pq := NewPriorityQueue(func(a, b int) bool { return a < b })
	for _, v := range []int{5, 1, 4, 2, 3} {
		pq.Push(v)
	}

	var popped []int
	for pq.Len() > 0 {
		v, ok := pq.Pop()
		if !ok {
			t.Fatal("Pop reported empty while Len() > 0")
		}
		popped = append(popped, v)
	}

	want := []int{1, 2, 3, 4, 5}
	for i, v := range want {
		if popped[i] != v {
			t.Fatalf("popped = %v, want %v", popped, want)
		}
	}
}

func TestPriorityQueuePeekDoesNotRemove(t *testing.T) {
	pq := NewPriorityQueue(func(a, b int) bool { return a < b })
	pq.Push(7)
	pq.Push(3)

	v, ok := pq.Peek()
	if !ok || v != 3 {
		t.Fatalf("Peek = %v, %v; want 3, true", v, ok)
	}
	if pq.Len() != 2 {
		t.Fatalf("Peek must not remove, Len() = %d", pq.Len())
	}
}

func TestPriorityQueueEmptyPopAndPeek(t *testing.T) {
	pq := NewPriorityQueue(func(a, b int) bool { return a < b })
	if _, ok := pq.Pop(); ok {
		t.Error("Pop on empty queue should report ok=false")
	}
	if _, ok := pq.Peek(); ok {
		t.Error("Peek on empty queue should report ok=false")
	}
}

func TestPriorityQueueSetLessReorders(t *testing.T) {
	type item struct{ redcost, age int }
	pq := NewPriorityQueue(func(a, b item) bool { return a.redcost < b.redcost })
	items := []item{{redcost: 3, age: 1}, {redcost: 1, age: 9}, {redcost: 2, age: 5}}
	for _, it := range items {
		pq.Push(it)
	}

	first, _ := pq.Peek()
	if first.redcost != 1 {
		t.Fatalf("expected redcost-ordered front to have redcost=1, got %+v", first)
	}

	pq.SetLess(func(a, b item) bool { return a.age > b.age })
	first, _ = pq.Peek()
	if first.age != 9 {
		t.Fatalf("after SetLess(age desc), expected front age=9, got %+v", first)
	}
}
