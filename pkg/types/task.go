package types

// Task is a fire-and-forget unit of work. It captures everything it needs at
// submission time and returns nothing; result propagation is out of scope.
type Task func()
