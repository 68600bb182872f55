package hardcover

// GraphQL documents for the Hardcover API. Field selections are kept minimal:
// only what the sync engine reads.

const meQuery = `
query Me {
    me {
        id
        username
        name
        books_count
    }
}`

const bookByISBN13Query = `
query BookByISBN($isbn: String!) {
    editions(where: {isbn_13: {_eq: $isbn}}, limit: 5) {
        id
        isbn_10
        isbn_13
        title
        pages
        book {
            id
            title
            slug
            release_date
            contributions {
                author {
                    id
                    name
                }
            }
        }
    }
}`

const bookByISBN10Query = `
query BookByISBN10($isbn: String!) {
    editions(where: {isbn_10: {_eq: $isbn}}, limit: 5) {
        id
        isbn_10
        isbn_13
        title
        pages
        book {
            id
            title
            slug
            release_date
            contributions {
                author {
                    id
                    name
                }
            }
        }
    }
}`

const bookSearchQuery = `
query SearchBooks($query: String!) {
    search(query: $query, query_type: "Book", per_page: 20) {
        results
    }
}`

const bookByIDQuery = `
query BookById($id: Int!) {
    books(where: {id: {_eq: $id}}) {
        id
        title
        slug
        release_date
        contributions {
            author {
                id
                name
            }
        }
        editions {
            id
            isbn_13
            isbn_10
            title
            pages
        }
    }
}`

const bookBySlugQuery = `
query BookBySlug($slug: String!) {
    books(where: {slug: {_eq: $slug}}) {
        id
        title
        slug
        release_date
        contributions {
            author {
                id
                name
            }
        }
        editions {
            id
            isbn_13
            isbn_10
            title
            pages
        }
    }
}`

const userBookFields = `
        id
        book_id
        edition_id
        status_id
        rating
        review_raw`

const userBookReadsFields = `
        user_book_reads(order_by: {started_at: desc}) {
            id
            started_at
            finished_at
            progress
            progress_pages
            edition_id
        }`

const bookSubquery = `
        book {
            id
            title
            slug
            release_date
            contributions {
                author {
                    id
                    name
                }
            }
            editions {
                id
                isbn_13
                isbn_10
                title
                pages
            }
        }
        edition {
            id
            isbn_13
            isbn_10
            title
            pages
        }`

const userBooksQuery = `
query UserBooks($user_id: Int!, $limit: Int!, $offset: Int!) {
    user_books(
        where: {user_id: {_eq: $user_id}},
        limit: $limit,
        offset: $offset,
        order_by: {updated_at: desc}
    ) {` + userBookFields + bookSubquery + userBookReadsFields + `
    }
}`

const userBookByBookIDQuery = `
query UserBookByBookId($user_id: Int!, $book_id: Int!) {
    user_books(
        where: {
            user_id: {_eq: $user_id},
            book_id: {_eq: $book_id}
        },
        limit: 1
    ) {` + userBookFields + userBookReadsFields + `
    }
}`

const userBooksBySlugsQuery = `
query UserBooksBySlugs($user_id: Int!, $slugs: [String!]!) {
    user_books(
        where: {
            user_id: {_eq: $user_id},
            book: {slug: {_in: $slugs}}
        },
        order_by: {updated_at: desc}
    ) {` + userBookFields + bookSubquery + userBookReadsFields + `
    }
}`

const insertUserBookMutation = `
mutation InsertUserBook($object: UserBookCreateInput!) {
    insert_user_book(object: $object) {
        id
        user_book {
            id
            book_id
            status_id
            rating
        }
    }
}`

const updateUserBookMutation = `
mutation UpdateUserBook($id: Int!, $object: UserBookUpdateInput!) {
    update_user_book(id: $id, object: $object) {
        id
        user_book {
            id
            book_id
            status_id
            rating
        }
    }
}`

const deleteUserBookMutation = `
mutation DeleteUserBook($id: Int!) {
    delete_user_book(id: $id) {
        id
    }
}`

const insertUserBookReadMutation = `
mutation InsertUserBookRead($user_book_id: Int!, $user_book_read: DatesReadInput!) {
    insert_user_book_read(user_book_id: $user_book_id, user_book_read: $user_book_read) {
        id
        user_book_read {
            id
            started_at
            finished_at
            progress
            progress_pages
            edition_id
        }
    }
}`

const updateUserBookReadMutation = `
mutation UpdateUserBookRead($id: Int!, $object: DatesReadInput!) {
    update_user_book_read(id: $id, object: $object) {
        id
        user_book_read {
            id
            started_at
            finished_at
            progress
            progress_pages
            edition_id
        }
    }
}`

const userListsQuery = `
query UserLists($user_id: Int!) {
    lists(where: {user_id: {_eq: $user_id}}) {
        id
        name
        slug
        books_count
    }
}`

const bookListsQuery = `
query BookLists($book_id: Int!, $user_id: Int!) {
    list_books(
        where: {
            book_id: {_eq: $book_id},
            list: {user_id: {_eq: $user_id}}
        }
    ) {
        id
        list {
            id
            name
            slug
            books_count
        }
    }
}`

const addBookToListMutation = `
mutation AddBookToList($list_id: Int!, $book_id: Int!) {
    insert_list_book(object: {list_id: $list_id, book_id: $book_id}) {
        id
    }
}`

const removeBookFromListMutation = `
mutation RemoveBookFromList($list_book_id: Int!) {
    delete_list_book(where: {id: {_eq: $list_book_id}}) {
        affected_rows
    }
}`
